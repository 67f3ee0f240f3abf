package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivegate/partyhub/wire"
)

func TestStaticFindByID(t *testing.T) {
	s := NewStatic()
	s.Put(wire.UserInfo{ID: "u1", Name: "Raynor"})
	s.Put(wire.UserInfo{ID: "u2", Name: "Kerrigan"})

	found, err := s.FindUsersByID(context.Background(), []string{"u1", "u2", "missing"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Raynor", found["u1"].Name)
	assert.NotContains(t, found, "missing")
}

func TestStaticFindByName(t *testing.T) {
	s := NewStatic()
	s.Put(wire.UserInfo{ID: "u1", Name: "Raynor"})

	found, err := s.FindUsersByName(context.Background(), []string{"Raynor", "Nobody"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "u1", found["Raynor"].ID)
}

func TestStaticPutOverwrites(t *testing.T) {
	s := NewStatic()
	s.Put(wire.UserInfo{ID: "u1", Name: "OldName"})
	s.Put(wire.UserInfo{ID: "u1", Name: "NewName"})

	found, err := s.FindUsersByID(context.Background(), []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, "NewName", found["u1"].Name)
}
