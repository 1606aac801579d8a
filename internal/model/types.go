package model

// RecID is a storage-assigned record identity. IDs are unique per entity
// type, monotonically increasing, and never reused. Zero is never a valid
// identity; reference fields use 0 to mean "no reference" where a null
// reference is permitted.
type RecID int64

// Timing records when taint was observed relative to the lval occurrence.
type Timing int32

const (
	NullTiming Timing = iota
	BeforeOccurrence
	AfterOccurrence
)

// Valid reports whether t is inside the closed Timing domain.
func (t Timing) Valid() bool {
	return t >= NullTiming && t <= AfterOccurrence
}

func (t Timing) String() string {
	switch t {
	case NullTiming:
		return "NULL_TIMING"
	case BeforeOccurrence:
		return "BEFORE_OCCURRENCE"
	case AfterOccurrence:
		return "AFTER_OCCURRENCE"
	}
	return "INVALID_TIMING"
}

// AtpType classifies the trigger condition at an attack point.
type AtpType int32

const (
	AtpFunctionCall AtpType = iota
	AtpPointerRW
	AtpLargeBufferAvail
)

// Valid reports whether t is inside the closed AtpType domain.
func (t AtpType) Valid() bool {
	return t >= AtpFunctionCall && t <= AtpLargeBufferAvail
}

func (t AtpType) String() string {
	switch t {
	case AtpFunctionCall:
		return "ATP_FUNCTION_CALL"
	case AtpPointerRW:
		return "ATP_POINTER_RW"
	case AtpLargeBufferAvail:
		return "ATP_LARGE_BUFFER_AVAIL"
	}
	return "INVALID_ATP_TYPE"
}

// SourceLval identifies a source-level storage location (variable or
// expression) at a specific program point and timing phase.
type SourceLval struct {
	ID      RecID
	File    string
	Line    uint32
	AstName string // AST node definition
	Timing  Timing
}

// LabelSet identifies the set of taint-origin labels observed on a memory
// region during one input-file run. Ptr is the run-time labelset pointer
// reported by the instrumentation engine.
type LabelSet struct {
	ID        RecID
	Ptr       uint64
	Inputfile string
	Labels    []uint32
}

// SourceFunction identifies a function definition.
type SourceFunction struct {
	ID   RecID
	File string
	Line uint32
	Name string
}

// AttackPoint identifies a source location where a bug could be triggered.
type AttackPoint struct {
	ID   RecID
	File string
	Line uint32
	Type AtpType
}

// Dua is a dead uncomplicated attack candidate: a source lval whose value,
// at instruction count Instr, is attacker-influenced.
type Dua struct {
	ID     RecID
	LvalID RecID

	// ViableBytes holds one LabelSet reference per byte of the lval, in
	// byte order. A zero entry means byte i carries no observed taint.
	ViableBytes []RecID

	AllLabels      []uint32
	Inputfile      string
	MaxTCN         uint32 // max taint compute number over the lval's bytes
	MaxCardinality uint32 // max taint-set cardinality over the lval's bytes
	Instr          uint64 // instruction count when the dua appeared

	// FakeDua marks a placeholder synthesized for an untainted byte range.
	// Fake duas are never eligible for bug creation.
	FakeDua bool
}

// Call is one dynamic call event, part of the call-trail provenance.
type Call struct {
	ID               RecID
	CallInstr        uint64
	RetInstr         uint64
	CalledFunctionID RecID
	CallsiteFile     string
	CallsiteLine     uint32
}

// Bug pairs a Dua with an AttackPoint and the specific dua bytes chosen to
// corrupt control or data flow.
type Bug struct {
	ID            RecID
	DuaID         RecID
	SelectedBytes []uint32
	AtpID         RecID
	MaxLiveness   float64
}

// SourceModification is the concrete source edit planting a bug: which
// bytes of which lval, at which attack point. SelectedBytesHash is derived
// from SelectedBytes at construction and cached; it is a pre-filter, never
// authoritative (see SelectedBytesHash).
type SourceModification struct {
	ID                RecID
	LvalID            RecID
	SelectedBytes     []uint32
	SelectedBytesHash uint64
	AtpID             RecID
}

// NewSourceModification builds a SourceModification with its derived hash.
func NewSourceModification(lvalID RecID, selectedBytes []uint32, atpID RecID) SourceModification {
	return SourceModification{
		LvalID:            lvalID,
		SelectedBytes:     selectedBytes,
		SelectedBytesHash: SelectedBytesHash(selectedBytes),
		AtpID:             atpID,
	}
}

// Build is one compiled binary containing a set of injected bugs.
type Build struct {
	ID      RecID
	Bugs    []RecID // injected bugs; elements must be valid references
	Output  string  // path to the executable
	Compile bool    // did the build compile?
}

// Run is one execution of a Build against the original or a fuzzed input.
type Run struct {
	ID       RecID
	BuildID  RecID
	FuzzedID RecID // bug whose trigger input was fuzzed; 0 = original input
	Exitcode int
	Output   string
	Success  bool // false if the test harness itself failed
}
