package partyhub

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivegate/partyhub/directory"
	"github.com/hivegate/partyhub/wire"
)

func TestFilterChatMessage(t *testing.T) {
	p := NewChatProcessor(nil, 10)

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"trims", "  hi  ", "hi"},
		{"newlines to spaces", "a\nb", "a b"},
		{"tabs to spaces", "a\tb", "a b"},
		{"strips control runes", "a\x00b\x1bc", "abc"},
		{"clamps runes", strings.Repeat("x", 20), strings.Repeat("x", 10)},
		{"empty stays empty", "   \n\t  ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.FilterChatMessage(tc.in))
		})
	}
}

func TestFilterChatMessageClampCountsRunes(t *testing.T) {
	p := NewChatProcessor(nil, 3)
	assert.Equal(t, "äöü", p.FilterChatMessage("äöüß"))
}

func TestProcessMessageContents(t *testing.T) {
	users := directory.NewStatic()
	users.Put(wire.UserInfo{ID: "u1", Name: "Tassadar"})
	users.Put(wire.UserInfo{ID: "u2", Name: "Zeratul"})
	p := NewChatProcessor(users, 0)

	text, mentions, err := p.ProcessMessageContents(context.Background(), "gg @Tassadar and @Zeratul and @Nobody")
	require.NoError(t, err)
	assert.Equal(t, "gg @Tassadar and @Zeratul and @Nobody", text, "text goes out unmodified")
	require.Len(t, mentions, 2)
	assert.Equal(t, "u1", mentions[0].ID)
	assert.Equal(t, "u2", mentions[1].ID)
}

func TestProcessMessageContentsDedupesMentions(t *testing.T) {
	users := directory.NewStatic()
	users.Put(wire.UserInfo{ID: "u1", Name: "Tassadar"})
	p := NewChatProcessor(users, 0)

	_, mentions, err := p.ProcessMessageContents(context.Background(), "@Tassadar @Tassadar @Tassadar")
	require.NoError(t, err)
	assert.Len(t, mentions, 1)
}

func TestProcessMessageContentsNoResolver(t *testing.T) {
	p := NewChatProcessor(nil, 0)

	text, mentions, err := p.ProcessMessageContents(context.Background(), "hi @Someone")
	require.NoError(t, err)
	assert.Equal(t, "hi @Someone", text)
	assert.Nil(t, mentions)
}

func TestProcessMessageContentsNoMentions(t *testing.T) {
	p := NewChatProcessor(directory.NewStatic(), 0)

	text, mentions, err := p.ProcessMessageContents(context.Background(), "no at signs here")
	require.NoError(t, err)
	assert.Equal(t, "no at signs here", text)
	assert.Nil(t, mentions)
}
