package audit

import "github.com/cratecrew/boxops/internal/domain"

// Result is the analyzer's verdict for one subscriber's event history.
type Result struct {
	Status            domain.AuditStatus
	ProposedNextBox   int
	DetectedSequences []int
	FlagReasons       []string
	ConfidenceScore   float64
}

// Per-anomaly confidence penalties. Applied once per distinct anomaly kind;
// each additional kind strictly lowers the score and the floor keeps it in
// (0,1] whenever at least one mapped purchase exists.
const (
	penaltySkipped    = 0.30
	penaltyOutOfOrder = 0.35
	penaltyDuplicate  = 0.20
	penaltyUnmapped   = 0.15
	confidenceFloor   = 0.05
)

// Analyze reconstructs a subscriber's episode progression from a normalized,
// pre-sorted event list and returns a confidence-scored verdict.
//
// Analyze trusts its input ordering (time ascending, order-id tiebreak); it
// never re-sorts. It is a pure function: the same event list always produces
// the same result, which is what makes re-runs idempotent and the engine
// testable.
//
// Sequence anomalies (skipped, duplicate, out-of-order) flag the record for
// human review. Unmapped purchases alone leave the mapped ladder clean but
// cap confidence below 1.0: unresolved purchases are evidence of an
// incomplete picture, not of a broken sequence.
func Analyze(events []domain.BoxEvent) Result {
	var (
		detected      []int
		unmappedCount int
	)
	for _, ev := range events {
		if !ev.Mapped() {
			unmappedCount++
			continue
		}
		detected = append(detected, *ev.SequenceNumber)
	}

	if len(detected) == 0 {
		return Result{
			Status:          domain.AuditFlagged,
			ProposedNextBox: 1,
			FlagReasons:     []string{domain.FlagNoMappedPurchases},
			ConfidenceScore: 0,
		}
	}

	var (
		reasons []string
		seen    = make(map[int]int)
		maxSeen = 0
		anomaly = false
		flagged = make(map[string]bool)
	)
	addFlag := func(reason string) {
		if flagged[reason] {
			return
		}
		flagged[reason] = true
		reasons = append(reasons, reason)
	}

	for i, seq := range detected {
		if i > 0 && seq > maxSeen+1 {
			addFlag(domain.FlagSkippedBox)
			anomaly = true
		}
		if i == 0 {
			// The ladder starts wherever the history starts; a first box
			// above 1 is a mid-stream import, not a skip.
			maxSeen = seq
		}
		if seq < maxSeen {
			addFlag(domain.FlagOutOfOrderPurchase)
			anomaly = true
		}
		seen[seq]++
		if seen[seq] == 2 {
			addFlag(domain.FlagDuplicateBox)
			anomaly = true
		}
		if seq > maxSeen {
			maxSeen = seq
		}
	}

	if unmappedCount > 0 {
		addFlag(domain.FlagUnmappedItems)
	}

	// Iterate the ordered reason list, not the map, so the float subtraction
	// order is fixed and repeated runs stay bit-identical.
	score := 1.0
	for _, reason := range reasons {
		switch reason {
		case domain.FlagSkippedBox:
			score -= penaltySkipped
		case domain.FlagOutOfOrderPurchase:
			score -= penaltyOutOfOrder
		case domain.FlagDuplicateBox:
			score -= penaltyDuplicate
		case domain.FlagUnmappedItems:
			score -= penaltyUnmapped
		}
	}
	if score < confidenceFloor {
		score = confidenceFloor
	}

	status := domain.AuditClean
	if anomaly {
		status = domain.AuditFlagged
	}

	return Result{
		Status:            status,
		ProposedNextBox:   maxSeen + 1,
		DetectedSequences: detected,
		FlagReasons:       reasons,
		ConfidenceScore:   score,
	}
}
