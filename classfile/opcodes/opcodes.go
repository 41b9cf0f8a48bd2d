// Package opcodes provides the JVM opcode table: one Opcode value per
// byte, naming its operand encoding and stack effect. Mirrors the shape
// of wagon's wasm/operators package (a newOp(code, name, ...) table
// builder), generalized from WASM's arg/return-type pairs to the
// variable pop/push arities and operand kinds a JVM instruction needs.
package opcodes

// Kind tags how an instruction's operand(s) are encoded in the bytecode
// stream (§4.1).
type Kind int

const (
	KindNone      Kind = iota // no operand; includes macro load/store (ILOAD_0, ...)
	KindPrimitive             // 1-byte primitive type code (NEWARRAY)
	KindType                  // 2-byte constant-pool index, resolves to a TypeRef
	KindField                 // 2-byte constant-pool index, resolves to a FieldRef
	KindMethod                // 2-byte constant-pool index, resolves to a MethodRef
	KindInterfaceMethod       // like KindMethod, plus 2 trailing discarded bytes
	KindCallSite              // 2-byte index + 2 discarded zero bytes, resolves to a CallSiteRef
	KindBranch                // signed 16-bit (32-bit under WIDE) offset
	KindI1                    // signed 8-bit immediate
	KindI2                    // signed 16-bit immediate
	KindI8                    // signed 64-bit immediate (not used by any real opcode, reserved)
	KindConstant              // 1-byte constant-pool index
	KindWideConstant          // 2-byte constant-pool index
	KindSwitch                // TABLESWITCH / LOOKUPSWITCH
	KindLocal                 // 1-byte (2-byte under WIDE) local slot index
	KindLocalI1               // local slot index + signed 8-bit immediate (IINC)
	KindLocalI2               // local slot index + signed 16-bit immediate (IINC under WIDE)
)

// Opcode describes one JVM instruction.
type Opcode struct {
	Code        byte
	Name        string
	OperandKind Kind
	Pop, Push   int // stack effect for the non-polymorphic common case; -1 means "computed from operand"
	Wideable    bool
}

var byCode [256]*Opcode
var byName = map[string]*Opcode{}

func newOp(code byte, name string, kind Kind, pop, push int) Opcode {
	op := Opcode{Code: code, Name: name, OperandKind: kind, Pop: pop, Push: push}
	byCode[code] = &op
	byName[name] = &op
	return op
}

func wideable(o Opcode) Opcode {
	o2 := o
	p := byCode[o.Code]
	p.Wideable = true
	o2.Wideable = true
	return o2
}

// Lookup returns the Opcode for a raw instruction byte.
func Lookup(code byte) (Opcode, bool) {
	p := byCode[code]
	if p == nil {
		return Opcode{}, false
	}
	return *p, true
}

// By returns the Opcode registered under name, for tests.
func By(name string) Opcode {
	p := byName[name]
	if p == nil {
		panic("opcodes: unknown mnemonic " + name)
	}
	return *p
}

var (
	Nop     = newOp(0x00, "nop", KindNone, 0, 0)
	AConstNull = newOp(0x01, "aconst_null", KindNone, 0, 1)
	IConstM1 = newOp(0x02, "iconst_m1", KindNone, 0, 1)
	IConst0 = newOp(0x03, "iconst_0", KindNone, 0, 1)
	IConst1 = newOp(0x04, "iconst_1", KindNone, 0, 1)
	IConst2 = newOp(0x05, "iconst_2", KindNone, 0, 1)
	IConst3 = newOp(0x06, "iconst_3", KindNone, 0, 1)
	IConst4 = newOp(0x07, "iconst_4", KindNone, 0, 1)
	IConst5 = newOp(0x08, "iconst_5", KindNone, 0, 1)
	LConst0 = newOp(0x09, "lconst_0", KindNone, 0, 2)
	LConst1 = newOp(0x0a, "lconst_1", KindNone, 0, 2)
	FConst0 = newOp(0x0b, "fconst_0", KindNone, 0, 1)
	FConst1 = newOp(0x0c, "fconst_1", KindNone, 0, 1)
	FConst2 = newOp(0x0d, "fconst_2", KindNone, 0, 1)
	DConst0 = newOp(0x0e, "dconst_0", KindNone, 0, 2)
	DConst1 = newOp(0x0f, "dconst_1", KindNone, 0, 2)

	BiPush = newOp(0x10, "bipush", KindI1, 0, 1)
	SiPush = newOp(0x11, "sipush", KindI2, 0, 1)
	Ldc    = newOp(0x12, "ldc", KindConstant, 0, 1)
	LdcW   = newOp(0x13, "ldc_w", KindWideConstant, 0, 1)
	Ldc2W  = newOp(0x14, "ldc2_w", KindWideConstant, 0, 2)

	ILoad = newOp(0x15, "iload", KindLocal, 0, 1)
	LLoad = newOp(0x16, "lload", KindLocal, 0, 2)
	FLoad = newOp(0x17, "fload", KindLocal, 0, 1)
	DLoad = newOp(0x18, "dload", KindLocal, 0, 2)
	ALoad = newOp(0x19, "aload", KindLocal, 0, 1)

	ILoad0 = newOp(0x1a, "iload_0", KindNone, 0, 1)
	ILoad1 = newOp(0x1b, "iload_1", KindNone, 0, 1)
	ILoad2 = newOp(0x1c, "iload_2", KindNone, 0, 1)
	ILoad3 = newOp(0x1d, "iload_3", KindNone, 0, 1)
	LLoad0 = newOp(0x1e, "lload_0", KindNone, 0, 2)
	LLoad1 = newOp(0x1f, "lload_1", KindNone, 0, 2)
	LLoad2 = newOp(0x20, "lload_2", KindNone, 0, 2)
	LLoad3 = newOp(0x21, "lload_3", KindNone, 0, 2)
	FLoad0 = newOp(0x22, "fload_0", KindNone, 0, 1)
	FLoad1 = newOp(0x23, "fload_1", KindNone, 0, 1)
	FLoad2 = newOp(0x24, "fload_2", KindNone, 0, 1)
	FLoad3 = newOp(0x25, "fload_3", KindNone, 0, 1)
	DLoad0 = newOp(0x26, "dload_0", KindNone, 0, 2)
	DLoad1 = newOp(0x27, "dload_1", KindNone, 0, 2)
	DLoad2 = newOp(0x28, "dload_2", KindNone, 0, 2)
	DLoad3 = newOp(0x29, "dload_3", KindNone, 0, 2)
	ALoad0 = newOp(0x2a, "aload_0", KindNone, 0, 1)
	ALoad1 = newOp(0x2b, "aload_1", KindNone, 0, 1)
	ALoad2 = newOp(0x2c, "aload_2", KindNone, 0, 1)
	ALoad3 = newOp(0x2d, "aload_3", KindNone, 0, 1)

	IALoad = newOp(0x2e, "iaload", KindNone, 2, 1)
	LALoad = newOp(0x2f, "laload", KindNone, 2, 2)
	FALoad = newOp(0x30, "faload", KindNone, 2, 1)
	DALoad = newOp(0x31, "daload", KindNone, 2, 2)
	AALoad = newOp(0x32, "aaload", KindNone, 2, 1)
	BALoad = newOp(0x33, "baload", KindNone, 2, 1)
	CALoad = newOp(0x34, "caload", KindNone, 2, 1)
	SALoad = newOp(0x35, "saload", KindNone, 2, 1)

	IStore = newOp(0x36, "istore", KindLocal, 1, 0)
	LStore = newOp(0x37, "lstore", KindLocal, 2, 0)
	FStore = newOp(0x38, "fstore", KindLocal, 1, 0)
	DStore = newOp(0x39, "dstore", KindLocal, 2, 0)
	AStore = newOp(0x3a, "astore", KindLocal, 1, 0)

	IStore0 = newOp(0x3b, "istore_0", KindNone, 1, 0)
	IStore1 = newOp(0x3c, "istore_1", KindNone, 1, 0)
	IStore2 = newOp(0x3d, "istore_2", KindNone, 1, 0)
	IStore3 = newOp(0x3e, "istore_3", KindNone, 1, 0)
	LStore0 = newOp(0x3f, "lstore_0", KindNone, 2, 0)
	LStore1 = newOp(0x40, "lstore_1", KindNone, 2, 0)
	LStore2 = newOp(0x41, "lstore_2", KindNone, 2, 0)
	LStore3 = newOp(0x42, "lstore_3", KindNone, 2, 0)
	FStore0 = newOp(0x43, "fstore_0", KindNone, 1, 0)
	FStore1 = newOp(0x44, "fstore_1", KindNone, 1, 0)
	FStore2 = newOp(0x45, "fstore_2", KindNone, 1, 0)
	FStore3 = newOp(0x46, "fstore_3", KindNone, 1, 0)
	DStore0 = newOp(0x47, "dstore_0", KindNone, 2, 0)
	DStore1 = newOp(0x48, "dstore_1", KindNone, 2, 0)
	DStore2 = newOp(0x49, "dstore_2", KindNone, 2, 0)
	DStore3 = newOp(0x4a, "dstore_3", KindNone, 2, 0)
	AStore0 = newOp(0x4b, "astore_0", KindNone, 1, 0)
	AStore1 = newOp(0x4c, "astore_1", KindNone, 1, 0)
	AStore2 = newOp(0x4d, "astore_2", KindNone, 1, 0)
	AStore3 = newOp(0x4e, "astore_3", KindNone, 1, 0)

	IAStore = newOp(0x4f, "iastore", KindNone, 3, 0)
	LAStore = newOp(0x50, "lastore", KindNone, 4, 0)
	FAStore = newOp(0x51, "fastore", KindNone, 3, 0)
	DAStore = newOp(0x52, "dastore", KindNone, 4, 0)
	AAStore = newOp(0x53, "aastore", KindNone, 3, 0)
	BAStore = newOp(0x54, "bastore", KindNone, 3, 0)
	CAStore = newOp(0x55, "castore", KindNone, 3, 0)
	SAStore = newOp(0x56, "sastore", KindNone, 3, 0)

	Pop     = newOp(0x57, "pop", KindNone, 1, 0)
	Pop2    = newOp(0x58, "pop2", KindNone, 2, 0)
	Dup     = newOp(0x59, "dup", KindNone, 1, 2)
	DupX1   = newOp(0x5a, "dup_x1", KindNone, 2, 3)
	DupX2   = newOp(0x5b, "dup_x2", KindNone, 3, 4)
	Dup2    = newOp(0x5c, "dup2", KindNone, 2, 4)
	Dup2X1  = newOp(0x5d, "dup2_x1", KindNone, 3, 5)
	Dup2X2  = newOp(0x5e, "dup2_x2", KindNone, 4, 6)
	Swap    = newOp(0x5f, "swap", KindNone, 2, 2)

	IAdd = newOp(0x60, "iadd", KindNone, 2, 1)
	LAdd = newOp(0x61, "ladd", KindNone, 4, 2)
	FAdd = newOp(0x62, "fadd", KindNone, 2, 1)
	DAdd = newOp(0x63, "dadd", KindNone, 4, 2)
	ISub = newOp(0x64, "isub", KindNone, 2, 1)
	LSub = newOp(0x65, "lsub", KindNone, 4, 2)
	FSub = newOp(0x66, "fsub", KindNone, 2, 1)
	DSub = newOp(0x67, "dsub", KindNone, 4, 2)
	IMul = newOp(0x68, "imul", KindNone, 2, 1)
	LMul = newOp(0x69, "lmul", KindNone, 4, 2)
	FMul = newOp(0x6a, "fmul", KindNone, 2, 1)
	DMul = newOp(0x6b, "dmul", KindNone, 4, 2)
	IDiv = newOp(0x6c, "idiv", KindNone, 2, 1)
	LDiv = newOp(0x6d, "ldiv", KindNone, 4, 2)
	FDiv = newOp(0x6e, "fdiv", KindNone, 2, 1)
	DDiv = newOp(0x6f, "ddiv", KindNone, 4, 2)
	IRem = newOp(0x70, "irem", KindNone, 2, 1)
	LRem = newOp(0x71, "lrem", KindNone, 4, 2)
	FRem = newOp(0x72, "frem", KindNone, 2, 1)
	DRem = newOp(0x73, "drem", KindNone, 4, 2)
	INeg = newOp(0x74, "ineg", KindNone, 1, 1)
	LNeg = newOp(0x75, "lneg", KindNone, 2, 2)
	FNeg = newOp(0x76, "fneg", KindNone, 1, 1)
	DNeg = newOp(0x77, "dneg", KindNone, 2, 2)

	IShl  = newOp(0x78, "ishl", KindNone, 2, 1)
	LShl  = newOp(0x79, "lshl", KindNone, 3, 2)
	IShr  = newOp(0x7a, "ishr", KindNone, 2, 1)
	LShr  = newOp(0x7b, "lshr", KindNone, 3, 2)
	IUShr = newOp(0x7c, "iushr", KindNone, 2, 1)
	LUShr = newOp(0x7d, "lushr", KindNone, 3, 2)
	IAnd  = newOp(0x7e, "iand", KindNone, 2, 1)
	LAnd  = newOp(0x7f, "land", KindNone, 4, 2)
	IOr   = newOp(0x80, "ior", KindNone, 2, 1)
	LOr   = newOp(0x81, "lor", KindNone, 4, 2)
	IXor  = newOp(0x82, "ixor", KindNone, 2, 1)
	LXor  = newOp(0x83, "lxor", KindNone, 4, 2)

	IInc = newOp(0x84, "iinc", KindLocalI1, 0, 0)

	I2L = newOp(0x85, "i2l", KindNone, 1, 2)
	I2F = newOp(0x86, "i2f", KindNone, 1, 1)
	I2D = newOp(0x87, "i2d", KindNone, 1, 2)
	L2I = newOp(0x88, "l2i", KindNone, 2, 1)
	L2F = newOp(0x89, "l2f", KindNone, 2, 1)
	L2D = newOp(0x8a, "l2d", KindNone, 2, 2)
	F2I = newOp(0x8b, "f2i", KindNone, 1, 1)
	F2L = newOp(0x8c, "f2l", KindNone, 1, 2)
	F2D = newOp(0x8d, "f2d", KindNone, 1, 2)
	D2I = newOp(0x8e, "d2i", KindNone, 2, 1)
	D2L = newOp(0x8f, "d2l", KindNone, 2, 2)
	D2F = newOp(0x90, "d2f", KindNone, 2, 1)
	I2B = newOp(0x91, "i2b", KindNone, 1, 1)
	I2C = newOp(0x92, "i2c", KindNone, 1, 1)
	I2S = newOp(0x93, "i2s", KindNone, 1, 1)

	LCmp  = newOp(0x94, "lcmp", KindNone, 4, 1)
	FCmpL = newOp(0x95, "fcmpl", KindNone, 2, 1)
	FCmpG = newOp(0x96, "fcmpg", KindNone, 2, 1)
	DCmpL = newOp(0x97, "dcmpl", KindNone, 4, 1)
	DCmpG = newOp(0x98, "dcmpg", KindNone, 4, 1)

	IfEq = newOp(0x99, "ifeq", KindBranch, 1, 0)
	IfNe = newOp(0x9a, "ifne", KindBranch, 1, 0)
	IfLt = newOp(0x9b, "iflt", KindBranch, 1, 0)
	IfGe = newOp(0x9c, "ifge", KindBranch, 1, 0)
	IfGt = newOp(0x9d, "ifgt", KindBranch, 1, 0)
	IfLe = newOp(0x9e, "ifle", KindBranch, 1, 0)

	IfICmpEq = newOp(0x9f, "if_icmpeq", KindBranch, 2, 0)
	IfICmpNe = newOp(0xa0, "if_icmpne", KindBranch, 2, 0)
	IfICmpLt = newOp(0xa1, "if_icmplt", KindBranch, 2, 0)
	IfICmpGe = newOp(0xa2, "if_icmpge", KindBranch, 2, 0)
	IfICmpGt = newOp(0xa3, "if_icmpgt", KindBranch, 2, 0)
	IfICmpLe = newOp(0xa4, "if_icmple", KindBranch, 2, 0)
	IfACmpEq = newOp(0xa5, "if_acmpeq", KindBranch, 2, 0)
	IfACmpNe = newOp(0xa6, "if_acmpne", KindBranch, 2, 0)

	Goto   = newOp(0xa7, "goto", KindBranch, 0, 0)
	Jsr    = newOp(0xa8, "jsr", KindBranch, 0, 1)
	Ret    = newOp(0xa9, "ret", KindLocal, 0, 0)

	TableSwitch  = newOp(0xaa, "tableswitch", KindSwitch, 1, 0)
	LookupSwitch = newOp(0xab, "lookupswitch", KindSwitch, 1, 0)

	IReturn = newOp(0xac, "ireturn", KindNone, 1, 0)
	LReturn = newOp(0xad, "lreturn", KindNone, 2, 0)
	FReturn = newOp(0xae, "freturn", KindNone, 1, 0)
	DReturn = newOp(0xaf, "dreturn", KindNone, 2, 0)
	AReturn = newOp(0xb0, "areturn", KindNone, 1, 0)
	Return  = newOp(0xb1, "return", KindNone, 0, 0)

	GetStatic = newOp(0xb2, "getstatic", KindField, 0, -1)
	PutStatic = newOp(0xb3, "putstatic", KindField, -1, 0)
	GetField  = newOp(0xb4, "getfield", KindField, 1, -1)
	PutField  = newOp(0xb5, "putfield", KindField, -1, 0)

	InvokeVirtual   = newOp(0xb6, "invokevirtual", KindMethod, -1, -1)
	InvokeSpecial   = newOp(0xb7, "invokespecial", KindMethod, -1, -1)
	InvokeStatic    = newOp(0xb8, "invokestatic", KindMethod, -1, -1)
	InvokeInterface = newOp(0xb9, "invokeinterface", KindInterfaceMethod, -1, -1)
	InvokeDynamic   = newOp(0xba, "invokedynamic", KindCallSite, -1, -1)

	New        = newOp(0xbb, "new", KindType, 0, 1)
	NewArray   = newOp(0xbc, "newarray", KindPrimitive, 1, 1)
	ANewArray  = newOp(0xbd, "anewarray", KindType, 1, 1)
	ArrayLength = newOp(0xbe, "arraylength", KindNone, 1, 1)
	AThrow     = newOp(0xbf, "athrow", KindNone, 1, 0)
	CheckCast  = newOp(0xc0, "checkcast", KindType, 1, 1)
	InstanceOf = newOp(0xc1, "instanceof", KindType, 1, 1)

	MonitorEnter = newOp(0xc2, "monitorenter", KindNone, 1, 0)
	MonitorExit  = newOp(0xc3, "monitorexit", KindNone, 1, 0)

	Wide          = newOp(0xc4, "wide", KindNone, 0, 0)
	MultiANewArray = newOp(0xc5, "multianewarray", KindType, -1, 1)

	IfNull    = newOp(0xc6, "ifnull", KindBranch, 1, 0)
	IfNonNull = newOp(0xc7, "ifnonnull", KindBranch, 1, 0)
	GotoW     = newOp(0xc8, "goto_w", KindBranch, 0, 0)
	JsrW      = newOp(0xc9, "jsr_w", KindBranch, 0, 1)
)

func init() {
	for _, o := range []Opcode{ILoad, LLoad, FLoad, DLoad, ALoad, IStore, LStore, FStore, DStore, AStore, Ret, IInc} {
		wideable(o)
	}
}

// IsGoto reports whether op is an unconditional jump (GOTO/GOTO_W), the
// "unconditional branch" the Handler Pruner's try-end extension and the
// AST Assembler's implicit-Leave test look for (§4.4 step 7, §4.8 step 2).
func IsGoto(op Opcode) bool {
	return op.Code == Goto.Code || op.Code == GotoW.Code
}

// IsReturnLike reports whether op is any of the x-RETURN family or the
// plain RETURN.
func IsReturnLike(op Opcode) bool {
	switch op.Code {
	case IReturn.Code, LReturn.Code, FReturn.Code, DReturn.Code, AReturn.Code, Return.Code:
		return true
	default:
		return false
	}
}

// IsThrow reports whether op is ATHROW.
func IsThrow(op Opcode) bool { return op.Code == AThrow.Code }

// IsDupOrSwap reports whether op is one of the DUP*/SWAP family, which
// never survive into the emitted AST (§8 property 6).
func IsDupOrSwap(op Opcode) bool {
	switch op.Code {
	case Dup.Code, DupX1.Code, DupX2.Code, Dup2.Code, Dup2X1.Code, Dup2X2.Code, Swap.Code:
		return true
	default:
		return false
	}
}

// IsMacroLoadStore reports whether op is one of the iload_0-style
// zero-operand load/store forms that imply a local slot (§4.1).
func IsMacroLoadStore(op Opcode) (slot int, isLoad, ok bool) {
	switch op.Code {
	case ILoad0.Code, LLoad0.Code, FLoad0.Code, DLoad0.Code, ALoad0.Code:
		return 0, true, true
	case ILoad1.Code, LLoad1.Code, FLoad1.Code, DLoad1.Code, ALoad1.Code:
		return 1, true, true
	case ILoad2.Code, LLoad2.Code, FLoad2.Code, DLoad2.Code, ALoad2.Code:
		return 2, true, true
	case ILoad3.Code, LLoad3.Code, FLoad3.Code, DLoad3.Code, ALoad3.Code:
		return 3, true, true
	case IStore0.Code, LStore0.Code, FStore0.Code, DStore0.Code, AStore0.Code:
		return 0, false, true
	case IStore1.Code, LStore1.Code, FStore1.Code, DStore1.Code, AStore1.Code:
		return 1, false, true
	case IStore2.Code, LStore2.Code, FStore2.Code, DStore2.Code, AStore2.Code:
		return 2, false, true
	case IStore3.Code, LStore3.Code, FStore3.Code, DStore3.Code, AStore3.Code:
		return 3, false, true
	}
	return 0, false, false
}
