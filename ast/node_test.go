package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-interpreter/classdecomp/ast"
	"github.com/go-interpreter/classdecomp/classfile"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "Label", ast.KindLabel.String())
	assert.Equal(t, "Store", ast.KindStore.String())
	assert.Equal(t, "?", ast.Kind(99).String())
}

func TestLoadStoreConstructors(t *testing.T) {
	v := &classfile.Variable{Name: "x"}
	load := ast.Load(v)
	assert.Equal(t, ast.KindLoad, load.Kind)
	assert.Same(t, v, load.Variable)
	assert.Nil(t, load.Value)

	store := ast.Store(v, load)
	assert.Equal(t, ast.KindStore, store.Kind)
	assert.Same(t, v, store.Variable)
	assert.Same(t, load, store.Value)
}

func TestBlockAndLeave(t *testing.T) {
	children := []*ast.Node{ast.Leave()}
	block := ast.Block(children)
	assert.Equal(t, ast.KindBlock, block.Kind)
	assert.Equal(t, children, block.Children)
	assert.Equal(t, ast.KindLeave, children[0].Kind)
}
