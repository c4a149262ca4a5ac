package mcts

import (
	"testing"

	"github.com/matryer/is"
)

func TestAllocateNodeSequential(t *testing.T) {
	is := is.New(t)
	s := NewNodeStore(10, 10, 8, false)
	idx1, err := s.AllocateNode()
	is.NoErr(err)
	is.Equal(idx1, NodeIndex(1))

	idx2, err := s.AllocateNode()
	is.NoErr(err)
	is.Equal(idx2, NodeIndex(2))
	is.Equal(s.NodeCount(), uint32(2))
}

func TestAllocateNodeExhaustedWithoutGrowth(t *testing.T) {
	is := is.New(t)
	s := NewNodeStore(1, 10, 8, false)
	_, err := s.AllocateNode()
	is.NoErr(err)
	_, err = s.AllocateNode()
	is.True(err != nil)
}

func TestAllocateNodeGrows(t *testing.T) {
	is := is.New(t)
	s := NewNodeStore(1, 10, 8, true)
	_, err := s.AllocateNode()
	is.NoErr(err)
	idx2, err := s.AllocateNode()
	is.NoErr(err)
	is.Equal(idx2, NodeIndex(2))
	rec := s.NodeAt(idx2)
	is.True(rec != nil)
}

func TestAllocateChildrenZeroReturnsNone(t *testing.T) {
	is := is.New(t)
	s := NewNodeStore(10, 10, 8, false)
	off, err := s.AllocateChildren(0)
	is.NoErr(err)
	is.Equal(off, childrenNone)
}

func TestAllocateChildrenContiguous(t *testing.T) {
	is := is.New(t)
	s := NewNodeStore(10, 10, 8, false)
	off, err := s.AllocateChildren(3)
	is.NoErr(err)
	for i := uint16(0); i < 3; i++ {
		e := s.EdgeAt(off, i)
		e.P = float32(i)
	}
	is.Equal(s.EdgeAt(off, 2).P, float32(2))
}
