// Package scoring updates the purchase-intent score and pipeline status of a
// follower record after each classified message.
//
// Score rules raise the score to intent-specific floors (never lowering it on
// positive signals) and apply small signed deltas on objections. The pipeline
// status machine only ever moves forward; customer is terminal.
package scoring

import (
	"strings"

	"github.com/creatoros/dmflow/internal/models"
)

// Score floors per positive intent class.
const (
	readyToPayFloor      = 0.75
	strongInterestFloor  = 0.75
	softInterestFloor    = 0.50
	productQuestionFloor = 0.25
)

// objectionDeltas are the signed score adjustments per objection type.
// Asking whether it works signals real interest, so it scores positive.
var objectionDeltas = map[models.Intent]float64{
	models.IntentObjectionPrice:       -0.05,
	models.IntentObjectionTime:        -0.03,
	models.IntentObjectionDoubt:       -0.05,
	models.IntentObjectionLater:       -0.03,
	models.IntentObjectionDoesItWork:  +0.05,
	models.IntentObjectionNotForMe:    -0.08,
	models.IntentObjectionTooComplex:  -0.05,
	models.IntentObjectionAlreadyHave: -0.10,
}

// readyToPayPhrases are explicit "send me the link / how do I pay" signals.
var readyToPayPhrases = []string{
	"como pago", "cómo pago", "donde pago", "dónde pago", "quiero pagar",
	"mandame el link", "mándame el link", "pasame el link", "pásame el link",
	"enviame el enlace", "envíame el enlace", "dame el link",
	"how do i pay", "where do i pay", "send me the link", "send the link",
	"i want to pay", "ready to pay",
}

// bareAffirmatives only count as ready-to-pay in closing context.
var bareAffirmatives = map[string]bool{
	"si": true, "sí": true, "sí!": true, "si!": true, "ok": true, "okay": true,
	"dale": true, "claro": true, "va": true, "de una": true, "listo": true,
	"yes": true, "yep": true, "sure": true, "yes!": true,
}

// closingMarkers are fragments of an assistant turn that make a following
// bare affirmative read as purchase confirmation.
var closingMarkers = []string{
	"http://", "https://", "link de pago", "enlace de pago", "payment link",
	"te lo mando", "te mando el link", "quieres que te", "quieres el link",
	"te paso el link", "shall i send", "want the link", "ready to start",
	"lo aseguramos", "aseguramos tu lugar",
}

// Result summarizes what changed during one scoring pass.
type Result struct {
	ReadyToPay    bool
	Score         float64
	Status        models.PipelineStatus
	BecameLead    bool
	StatusChanged bool
}

// IsReadyToPay reports whether the message is an explicit payment request.
// A bare affirmative counts only when the last assistant turn offered a
// payment link or asked a closing question; without that context a lone "ok"
// is just agreement.
func IsReadyToPay(record *models.FollowerRecord, message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, p := range readyToPayPhrases {
		if strings.Contains(normalized, p) {
			return true
		}
	}
	if !bareAffirmatives[normalized] {
		return false
	}
	last, ok := record.LastAssistantTurn()
	if !ok {
		return false
	}
	prev := strings.ToLower(last.Content)
	for _, m := range closingMarkers {
		if strings.Contains(prev, m) {
			return true
		}
	}
	return false
}

// ApplyMessage recomputes score, lead flag and pipeline status on the record
// for one classified message. The record is mutated in place.
func ApplyMessage(record *models.FollowerRecord, in models.Intent, message string) Result {
	prevStatus := record.PipelineStatus
	wasLead := record.IsLead

	readyToPay := IsReadyToPay(record, message)

	switch {
	case readyToPay:
		record.PurchaseIntentScore = max(record.PurchaseIntentScore, readyToPayFloor)
	case in == models.IntentStrongInterest:
		record.PurchaseIntentScore = max(record.PurchaseIntentScore, strongInterestFloor)
	case in == models.IntentSoftInterest:
		record.PurchaseIntentScore = max(record.PurchaseIntentScore, softInterestFloor)
	case in == models.IntentProductQuestion:
		record.PurchaseIntentScore = max(record.PurchaseIntentScore, productQuestionFloor)
	case in.IsObjection():
		record.PurchaseIntentScore += objectionDeltas[in]
	}
	record.PurchaseIntentScore = clamp01(record.PurchaseIntentScore)

	if record.PurchaseIntentScore > models.LeadScoreThreshold || in == models.IntentStrongInterest {
		record.IsLead = true
	}

	advanceStatus(record, in, readyToPay)

	return Result{
		ReadyToPay:    readyToPay,
		Score:         record.PurchaseIntentScore,
		Status:        record.PipelineStatus,
		BecameLead:    record.IsLead && !wasLead,
		StatusChanged: record.PipelineStatus != prevStatus,
	}
}

// advanceStatus applies the forward-only pipeline transitions.
func advanceStatus(record *models.FollowerRecord, in models.Intent, readyToPay bool) {
	if record.IsCustomer || record.PipelineStatus == models.StatusCustomer {
		record.AdvanceStatus(models.StatusCustomer)
		return
	}
	if record.PipelineStatus == "" {
		record.PipelineStatus = models.StatusNew
	}
	rank := record.PipelineStatus.Rank()
	if rank <= models.StatusActive.Rank() &&
		(in == models.IntentStrongInterest || readyToPay || record.PurchaseIntentScore >= models.HotScoreThreshold) {
		record.AdvanceStatus(models.StatusHot)
		return
	}
	if record.PipelineStatus == models.StatusNew &&
		(isEngagement(in) || record.TotalMessages >= 2) {
		record.AdvanceStatus(models.StatusActive)
	}
}

// isEngagement reports whether the intent shows the follower is actively in
// conversation rather than just saying hello.
func isEngagement(in models.Intent) bool {
	switch in {
	case models.IntentSoftInterest, models.IntentStrongInterest, models.IntentBooking,
		models.IntentProductQuestion, models.IntentFreeOffer:
		return true
	default:
		return in.IsObjection()
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
