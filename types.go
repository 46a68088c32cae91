package courier

import (
	"github.com/inboxkit/courier/internal/action"
	"github.com/inboxkit/courier/internal/ledger"
)

type (
	ActionID   = ledger.ID
	ActionType = action.Type
	Params     = action.Params

	MoveParams      = action.MoveParams
	StarParams      = action.StarParams
	ReadParams      = action.ReadParams
	LabelParams     = action.LabelParams
	ImportantParams = action.ImportantParams
)

const (
	Move      = action.Move
	Star      = action.Star
	Read      = action.Read
	Label     = action.Label
	Important = action.Important
)

// ActionTypes lists every action type.
var ActionTypes = action.Types
