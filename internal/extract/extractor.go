// Package extract recovers sender attribution from rendered thread
// snapshots. Candidates are text nodes starting with a localized "Sent by"
// marker; each candidate is resolved through an ordered strategy cascade,
// strong structured signals first, positional text heuristics second.
package extract

import (
	"regexp"
	"strings"

	"github.com/vschool/agentsync/internal/models"
	"go.uber.org/zap"
)

var markerPrefixes = []string{"ส่งโดย ", "Sent by "}

// Notices that contain a marker but are not admin attribution.
var excludePhrases = []string{"ข้อความตอบกลับอัตโนมัติ", "assigned this"}

const (
	maxCandidateChildLevels = 2
	maxCandidateTextLen     = 120
	maxNameLen              = 80
	maxMessageTextLen       = 100
	maxAncestorLevels       = 6
)

// Strategy resolves the message id/text for one attribution candidate.
// Implementations report ok=false when they find nothing, letting the next
// strategy in the cascade try.
type Strategy interface {
	Name() string
	Resolve(name string, node Node) (models.SenderTuple, bool)
}

type Extractor struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New builds the default cascade: strong signal (internal state chain),
// then weak signal (ancestor sibling text).
func New(logger *zap.Logger) *Extractor {
	return &Extractor{
		strategies: []Strategy{strongSignal{}, weakSignal{}},
		logger:     logger,
	}
}

// Extract returns the deduplicated sender tuples found in one snapshot.
// When no candidate qualifies at all, it falls back to conversation-level
// attribution: one tuple per distinct sender name, message fields nil.
func (e *Extractor) Extract(snap *Snapshot) []models.SenderTuple {
	if snap == nil {
		return nil
	}

	var markers []Node
	for _, node := range snap.Nodes {
		if isMarker(node.Text) {
			markers = append(markers, node)
		}
	}

	var tuples []models.SenderTuple
	seen := map[string]bool{}

	for _, node := range markers {
		text := strings.TrimSpace(node.Text)
		if node.ChildLevels > maxCandidateChildLevels || runeLen(text) > maxCandidateTextLen {
			continue
		}
		name := senderName(text)
		if name == "" || runeLen(name) > maxNameLen {
			continue
		}

		tuple := models.SenderTuple{Name: name}
		for _, strat := range e.strategies {
			if resolved, ok := strat.Resolve(name, node); ok {
				tuple = resolved
				e.logger.Debug("Attribution resolved",
					zap.String("strategy", strat.Name()),
					zap.String("name", name))
				break
			}
		}

		key := tuple.DedupKey()
		if !seen[key] {
			seen[key] = true
			tuples = append(tuples, tuple)
		}
	}

	if len(tuples) == 0 {
		tuples = conversationLevel(markers)
	}
	return tuples
}

// conversationLevel is the last-resort fallback: distinct sender names from
// the raw marker nodes, ignoring the structural candidate filters.
func conversationLevel(markers []Node) []models.SenderTuple {
	var tuples []models.SenderTuple
	seen := map[string]bool{}
	for _, node := range markers {
		name := senderName(strings.TrimSpace(node.Text))
		if name == "" || runeLen(name) > maxNameLen || seen[name] {
			continue
		}
		seen[name] = true
		tuples = append(tuples, models.SenderTuple{Name: name})
	}
	return tuples
}

func isMarker(text string) bool {
	trimmed := strings.TrimSpace(text)
	hasPrefix := false
	for _, p := range markerPrefixes {
		if strings.HasPrefix(trimmed, p) {
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return false
	}
	for _, phrase := range excludePhrases {
		if strings.Contains(trimmed, phrase) {
			return false
		}
	}
	return true
}

func senderName(text string) string {
	for _, p := range markerPrefixes {
		if strings.HasPrefix(text, p) {
			return strings.TrimSpace(strings.TrimPrefix(text, p))
		}
	}
	return ""
}

func runeLen(s string) int { return len([]rune(s)) }

func capText(s string) string {
	r := []rune(s)
	if len(r) > maxMessageTextLen {
		r = r[:maxMessageTextLen]
	}
	return string(r)
}

// strongSignal walks the node's internal state chain looking for a message
// identifier and message text under known property names. The chain is
// captured pre-bounded (20 DOM levels x 15 state levels) by the surface.
type strongSignal struct{}

func (strongSignal) Name() string { return "strong-signal" }

var idPaths = [][]string{
	{"responseId"},
	{"messageId"},
	{"message", "message_id"},
	{"message", "id"},
}

var textPaths = [][]string{
	{"responseText"},
	{"consumerText"},
	{"message", "text"},
	{"text"},
}

func (strongSignal) Resolve(name string, node Node) (models.SenderTuple, bool) {
	var foundID, foundText string
	for _, props := range node.StateChain {
		if foundID == "" {
			for _, path := range idPaths {
				if v := props.str(path...); v != "" {
					foundID = v
					break
				}
			}
		}
		if foundText == "" {
			for _, path := range textPaths {
				if v := props.str(path...); v != "" {
					foundText = v
					break
				}
			}
		}
		if foundID != "" && foundText != "" {
			break
		}
	}

	if foundID == "" && foundText == "" {
		return models.SenderTuple{}, false
	}
	tuple := models.SenderTuple{Name: name}
	if foundID != "" {
		tuple.MessageID = &foundID
	}
	if foundText != "" {
		capped := capText(foundText)
		tuple.MessageText = &capped
	}
	return tuple, true
}

// weakSignal scans ancestor sibling texts for the first plausible message
// block: not a day marker, not a timestamp, not known boilerplate, within
// the 4-400 character window.
type weakSignal struct{}

func (weakSignal) Name() string { return "weak-signal" }

var (
	thaiDayRe = regexp.MustCompile(`^[จอพศส]\.`)
	timeRe    = regexp.MustCompile(`^\d{1,2}:\d{2}`)
)

var boilerplatePrefixes = []string{
	"ส่งโดย", "Sent by", "ระบบมอบหมาย", "assigned",
	"ก่อนหน้านี้", "ปิด", "ถัดไป", "ก่อนหน้านี้ปิดถัดไป",
}

func (weakSignal) Resolve(name string, node Node) (models.SenderTuple, bool) {
	ancestors := node.Ancestors
	if len(ancestors) > maxAncestorLevels {
		ancestors = ancestors[:maxAncestorLevels]
	}
	for _, ancestor := range ancestors {
		for _, sib := range ancestor.SiblingTexts {
			text := strings.TrimSpace(sib)
			n := runeLen(text)
			if n < 4 || n > 400 {
				continue
			}
			if thaiDayRe.MatchString(text) || timeRe.MatchString(text) {
				continue
			}
			if hasBoilerplatePrefix(text) {
				continue
			}
			capped := capText(text)
			return models.SenderTuple{Name: name, MessageText: &capped}, true
		}
	}
	return models.SenderTuple{}, false
}

func hasBoilerplatePrefix(text string) bool {
	for _, p := range boilerplatePrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}
