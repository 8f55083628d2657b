package services

import "wedhub/internal/models"

// Допустимые переходы статусов платежа.
// Same-state updates are always allowed and handled in CanTransitionPayment.
var PaymentTransitions = map[models.PaymentStatus]map[models.PaymentStatus]bool{
	models.PaymentPending: {
		models.PaymentProcessing: true,
		models.PaymentSucceeded:  true,
		models.PaymentFailed:     true,
		models.PaymentCancelled:  true,
	},
	models.PaymentProcessing: {
		models.PaymentSucceeded: true,
		models.PaymentFailed:    true,
		models.PaymentCancelled: true,
	},
	models.PaymentSucceeded: {
		models.PaymentRefunded:          true,
		models.PaymentPartiallyRefunded: true,
	},
	models.PaymentFailed:            {models.PaymentPending: true}, // retry
	models.PaymentCancelled:         {},
	models.PaymentRefunded:          {},
	models.PaymentPartiallyRefunded: {models.PaymentRefunded: true},
}

func CanTransitionPayment(from, to models.PaymentStatus) bool {
	if from == to {
		return true
	}
	nexts, ok := PaymentTransitions[from]
	if !ok {
		return false
	}
	return nexts[to]
}
