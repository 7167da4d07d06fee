// internal/knowledge/tiers.go
//
// Sensitivity tiers for puzzle corpus fragments.
//
//   PUBLIC = {puzzle_statement, public_fact}
//   HINT   = {hint}
//   SECRET = {puzzle_answer, additional_info}
//
// Every document type belongs to exactly one tier. Unknown types belong to
// none and are therefore never returned by a filtered query.

package knowledge

// DocType is the "type" metadata carried by every corpus fragment.
type DocType string

const (
	TypePuzzleStatement DocType = "puzzle_statement"
	TypePublicFact      DocType = "public_fact"
	TypeHint            DocType = "hint"
	TypePuzzleAnswer    DocType = "puzzle_answer"
	TypeAdditionalInfo  DocType = "additional_info"
)

// Tier is a bit set of sensitivity tiers.
type Tier uint8

const (
	TierPublic Tier = 1 << iota
	TierHint
	TierSecret

	TierNone Tier = 0
	TierAll       = TierPublic | TierHint | TierSecret
)

var tierOf = map[DocType]Tier{
	TypePuzzleStatement: TierPublic,
	TypePublicFact:      TierPublic,
	TypeHint:            TierHint,
	TypePuzzleAnswer:    TierSecret,
	TypeAdditionalInfo:  TierSecret,
}

// TierOf reports the tier of a document type, or TierNone if unknown.
func TierOf(t DocType) Tier {
	return tierOf[t]
}

// Allows reports whether a fragment of type t may pass through this set.
func (s Tier) Allows(t DocType) bool {
	tier := TierOf(t)
	return tier != TierNone && s&tier == tier
}

// Types lists the document types admitted by s.
func (s Tier) Types() []DocType {
	var out []DocType
	for _, t := range []DocType{TypePuzzleStatement, TypePublicFact, TypeHint, TypePuzzleAnswer, TypeAdditionalInfo} {
		if s.Allows(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s Tier) String() string {
	switch s {
	case TierPublic:
		return "public"
	case TierPublic | TierHint:
		return "public+hint"
	case TierAll:
		return "all"
	case TierNone:
		return "none"
	default:
		return "custom"
	}
}
