package partyhub

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/hivegate/partyhub/wire"
)

// DefaultMaxChatLength clamps chat lines unless the config says otherwise.
const DefaultMaxChatLength = 500

// NameResolver turns display names into user info, for mention resolution.
type NameResolver interface {
	FindUsersByName(ctx context.Context, names []string) (map[string]wire.UserInfo, error)
}

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9][A-Za-z0-9_-]{0,31})`)

// ChatProcessor is the default MessageProcessor: strips control
// characters, clamps length and resolves @name mentions against a name
// resolver. Unresolvable mentions stay plain text.
type ChatProcessor struct {
	names  NameResolver
	maxLen int
}

var _ MessageProcessor = (*ChatProcessor)(nil)

func NewChatProcessor(names NameResolver, maxLen int) *ChatProcessor {
	if maxLen <= 0 {
		maxLen = DefaultMaxChatLength
	}
	return &ChatProcessor{names: names, maxLen: maxLen}
}

// FilterChatMessage sanitizes raw client text. It never rejects, only
// trims: an empty result is still a publishable (blank) message the same
// way the upstream filter behaves.
func (p *ChatProcessor) FilterChatMessage(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' {
			b.WriteRune(' ')
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	runes := []rune(out)
	if len(runes) > p.maxLen {
		out = string(runes[:p.maxLen])
	}
	return out
}

// ProcessMessageContents extracts @name mentions and resolves them to
// users. The text itself is returned unchanged; clients highlight
// mentions from the resolved list.
func (p *ChatProcessor) ProcessMessageContents(ctx context.Context, text string) (string, []wire.UserInfo, error) {
	if p.names == nil {
		return text, nil, nil
	}

	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text, nil, nil
	}

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	found, err := p.names.FindUsersByName(ctx, names)
	if err != nil {
		return "", nil, err
	}

	mentions := make([]wire.UserInfo, 0, len(found))
	for _, name := range names {
		if info, ok := found[name]; ok {
			mentions = append(mentions, info)
		}
	}
	return text, mentions, nil
}
