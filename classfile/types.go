// Package classfile holds the data model shared by the decoder, the
// exception-table passes, the stack analyzer, and the AST assembler,
// plus the interfaces through which they reach the external
// collaborators named in spec §6: constant-pool resolution, control-flow
// graph construction, and stack-map verification. None of those
// collaborators are implemented here — only the shape the core needs
// from them.
package classfile

import "fmt"

// TypeRef, FieldRef, MethodRef and CallSiteRef are opaque handles
// resolved by a MetadataScope. The core never inspects their contents;
// it only carries them through to the AST.
type TypeRef struct {
	Name       string
	ArrayDepth int
}

func (t TypeRef) String() string {
	s := t.Name
	for i := 0; i < t.ArrayDepth; i++ {
		s += "[]"
	}
	return s
}

// Throwable is the type used for an implicit catch-all handler
// (finally blocks, and as a fallback common supertype).
var Throwable = TypeRef{Name: "java.lang.Throwable"}

type FieldRef struct {
	DeclaringType TypeRef
	Name          string
	Type          TypeRef
}

type MethodRef struct {
	DeclaringType TypeRef
	Name          string
	ParamTypes    []TypeRef
	ReturnType    TypeRef
	IsInterface   bool
}

type CallSiteRef struct {
	BootstrapMethod MethodRef
	Name            string
	Type            MethodRef
}

// Constant is a resolved constant-pool literal: string, numeric, a
// TypeRef (class literal), a MethodRef/CallSiteRef (method handle /
// method type), or nil.
type Constant struct {
	Value interface{}
}

// MetadataScope resolves unsigned constant-pool token indices into the
// concrete references instructions carry. Implementations must be safe
// for concurrent read (§5): many method-body jobs share one scope.
type MetadataScope interface {
	ResolveType(index uint16) (TypeRef, error)
	ResolveField(index uint16) (FieldRef, error)
	ResolveMethod(index uint16) (MethodRef, error)
	ResolveInterfaceMethod(index uint16) (MethodRef, error)
	ResolveCallSite(index uint16) (CallSiteRef, error)
	ResolveConstant(index uint16) (Constant, error)

	// CommonSuperType returns the narrowest common ancestor of a and b,
	// used by the AST Assembler to type a merged multi-catch block
	// (SPEC_FULL §D.1). Implementations that cannot compute one may
	// return Throwable.
	CommonSuperType(a, b TypeRef) TypeRef
}

// Parameter describes one declared method parameter.
type Parameter struct {
	Slot int
	Name string
	Type TypeRef
}

// VariableTableEntry mirrors one row of a LocalVariableTable or
// LocalVariableTypeTable attribute (§4.2).
type VariableTableEntry struct {
	StartOffset int
	Length      int
	Name        string
	Type        TypeRef
	Slot        int
}

// ExceptionTableEntryRaw is one row of the class file's raw exception
// table, offsets exactly as encoded (§4.3). CatchType is the zero value
// for a finally handler.
type ExceptionTableEntryRaw struct {
	StartOffset   int
	EndOffset     int
	HandlerOffset int
	CatchType     *TypeRef
}

// MethodBody is the input handle described in §6.
type MethodBody struct {
	Code          []byte
	MaxStack      int
	MaxLocals     int
	Parameters    []Parameter
	DeclaringType TypeRef
	IsStatic      bool
	IsConstructor bool

	LocalVariableTable     []VariableTableEntry
	LocalVariableTypeTable []VariableTableEntry
	ExceptionTable         []ExceptionTableEntryRaw
}

// NodeKind classifies a control-flow-graph node as produced by the
// external ControlFlowGraphBuilder (§6).
type NodeKind int

const (
	NodeNormal NodeKind = iota
	NodeEntryPoint
	NodeRegularExit
	NodeExceptionalExit
	NodeCatchHandler
	NodeFinallyHandler
	NodeEndFinally
)

func (k NodeKind) String() string {
	switch k {
	case NodeEntryPoint:
		return "EntryPoint"
	case NodeRegularExit:
		return "RegularExit"
	case NodeExceptionalExit:
		return "ExceptionalExit"
	case NodeCatchHandler:
		return "CatchHandler"
	case NodeFinallyHandler:
		return "FinallyHandler"
	case NodeEndFinally:
		return "EndFinally"
	default:
		return "Normal"
	}
}

// CFGNode is one node of the control-flow graph built over the decoded
// instruction list (§6). Dominance and the dominance frontier are
// precomputed by the builder.
type CFGNode interface {
	Start() *Instruction
	End() *Instruction
	Kind() NodeKind
	Successors() []CFGNode
	Predecessors() []CFGNode
	Dominates(other CFGNode) bool
	DominanceFrontier() []CFGNode
}

// ControlFlowGraph is the result of an external CFGBuilder invocation.
type ControlFlowGraph interface {
	Nodes() []CFGNode
	NodeAt(offset int) CFGNode
	EntryNode() CFGNode
	RegularExitNode() CFGNode
}

// CFGBuilder constructs a control-flow graph with no exception edges
// over the decoded instruction list and exception handler list (§6,
// §4.3 step 1). It is supplied by the caller, not implemented here.
type CFGBuilder func(instructions *InstructionList, handlers []ExceptionHandler) (ControlFlowGraph, error)

// FrameResult is the per-instruction result of the external
// StackMappingVisitor: the operand stack state right after the
// instruction executes, plus the set of Uninitialized(atInstruction)
// slots that instruction just finished initializing, keyed by the
// offset they were allocated at (§4.5 Step).
type FrameResult struct {
	PostStack       []FrameValue
	Initialized     map[int]TypeRef
	PostVariable    map[int]FrameValue // slot -> value, for stores the verifier tracks itself
}

// StackMappingVisitor yields abstract frames for one method body. A
// fresh instance is created per analysis (§5).
type StackMappingVisitor interface {
	Visit(instr *Instruction) (FrameResult, error)
}

// FrameValueKind tags the FrameValue variant (§3).
type FrameValueKind int

const (
	FVTop FrameValueKind = iota
	FVInteger
	FVFloat
	FVLong
	FVDouble
	FVNull
	FVUninitializedThis
	FVUninitialized
	FVReference
)

// FrameValue is the abstract-interpretation value attached to one stack
// or variable slot (§3). Long and Double occupy two adjacent slots, the
// second holding FVTop.
type FrameValue struct {
	Kind          FrameValueKind
	Type          TypeRef // valid when Kind == FVReference
	AtInstruction int     // valid when Kind == FVUninitialized: the `new` offset
}

func (v FrameValue) IsWide() bool {
	return v.Kind == FVLong || v.Kind == FVDouble
}

func (v FrameValue) IsUninitialized() bool {
	return v.Kind == FVUninitialized || v.Kind == FVUninitializedThis
}

func (v FrameValue) String() string {
	switch v.Kind {
	case FVTop:
		return "top"
	case FVInteger:
		return "int"
	case FVFloat:
		return "float"
	case FVLong:
		return "long"
	case FVDouble:
		return "double"
	case FVNull:
		return "null"
	case FVUninitializedThis:
		return "uninitializedThis"
	case FVUninitialized:
		return fmt.Sprintf("uninitialized@%d", v.AtInstruction)
	case FVReference:
		return v.Type.String()
	default:
		return "?"
	}
}

// VariableKind tags how a Variable originated (§3).
type VariableKind int

const (
	VarParameter VariableKind = iota
	VarLocal
	VarTemporary
)

// Variable is the abstract local-variable/temporary identity carried
// through the rewriter and splitter into the AST (§3).
type Variable struct {
	Kind      VariableKind
	Name      string
	Type      TypeRef
	Generated bool
	// OriginSlot is non-nil when this variable originated from a
	// metadata local-variable-table slot.
	OriginSlot *int
}

func (v *Variable) String() string {
	if v == nil {
		return "<nil var>"
	}
	return v.Name
}
