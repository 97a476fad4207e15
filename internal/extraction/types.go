package extraction

// Field names one slot of a Record.
type Field string

const (
	FieldNames  Field = "names"
	FieldIDs    Field = "ids"
	FieldPhones Field = "phones"
)

// Tier says when a Rule runs. Labeled rules run line by line; fallback rules
// run over the whole text, and only for fields the labeled pass left empty.
type Tier int

const (
	TierLabeled Tier = iota + 1
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierLabeled:
		return "labeled"
	case TierFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Record holds candidate identity fields pulled out of one OCR transcript.
// Slices are never nil, values keep discovery order and are not deduplicated.
type Record struct {
	Names   []string `json:"names"`
	IDs     []string `json:"ids"`
	Phones  []string `json:"phones"`
	RawText string   `json:"rawText"`
}

// NewRecord returns an empty record for text.
func NewRecord(text string) Record {
	return Record{
		Names:   []string{},
		IDs:     []string{},
		Phones:  []string{},
		RawText: text,
	}
}

// Values returns the slice stored for f.
func (r *Record) Values(f Field) []string {
	switch f {
	case FieldNames:
		return r.Names
	case FieldIDs:
		return r.IDs
	case FieldPhones:
		return r.Phones
	}
	return nil
}

func (r *Record) set(f Field, values []string) {
	switch f {
	case FieldNames:
		r.Names = values
	case FieldIDs:
		r.IDs = values
	case FieldPhones:
		r.Phones = values
	}
}

// Empty reports whether no field produced a value.
func (r Record) Empty() bool {
	return len(r.Names) == 0 && len(r.IDs) == 0 && len(r.Phones) == 0
}

// Matcher finds candidate values for a single field in text.
type Matcher interface {
	// Find returns accepted values in discovery order, or nil.
	Find(text string) []string
}

// Rule binds a Matcher to the field it fills.
type Rule struct {
	Field   Field
	Tier    Tier
	Matcher Matcher
}

// Extractor turns raw text into a Record.
type Extractor interface {
	Extract(text string) Record
}
