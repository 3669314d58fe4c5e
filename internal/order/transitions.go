package order

import "github.com/mmynk/tableside/internal/models"

// transitions lists every legal line move. Nothing else may change a line's status.
var transitions = map[models.LineStatus][]models.LineStatus{
	models.LinePending: {models.LineCooking, models.LineCancelled},
	models.LineCooking: {models.LineReady, models.LineCancelled},
	models.LineReady:   {models.LineServed},
}

func canTransition(from, to models.LineStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
