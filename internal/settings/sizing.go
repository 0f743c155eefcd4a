package settings

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/instrument"
)

// lotStep is the smallest tradable lot increment (micro lot)
var lotStep = decimal.RequireFromString("0.01")

// QualityMultiplier scales risk by quality tier
func QualityMultiplier(q contracts.Quality) float64 {
	switch q {
	case contracts.QualityInstitutional:
		return 1.0
	case contracts.QualityExcellent:
		return 0.85
	case contracts.QualityStrong:
		return 0.7
	case contracts.QualityGood:
		return 0.5
	default:
		return 0
	}
}

// PositionSize sizes one signal for one user.
// lots = balance × risk% × multiplier / (stop pips × pip value per lot),
// floored to a micro lot.
func PositionSize(sig *contracts.Signal, user contracts.UserSettings) contracts.PositionSize {
	out := contracts.PositionSize{
		SignalID:          sig.ID,
		UserID:            user.UserID,
		Quality:           sig.Quality,
		QualityMultiplier: QualityMultiplier(sig.Quality),
		StopPips:          instrument.Distance(sig.Symbol, sig.Entry, sig.StopLoss),
		PipValuePerLot:    instrument.PipValuePerLot(sig.Symbol, sig.Entry),
	}

	switch {
	case !sig.IsOpen():
		out.Reason = fmt.Sprintf("signal is %s", sig.Status)
		return out
	case out.QualityMultiplier == 0:
		out.Reason = fmt.Sprintf("%s quality is not traded", sig.Quality)
		return out
	case sig.Quality.Rank() < user.MinQuality.Rank():
		out.Reason = fmt.Sprintf("quality %s below minimum %s", sig.Quality, user.MinQuality)
		return out
	case out.StopPips <= 0 || out.PipValuePerLot <= 0:
		out.Reason = "stop distance is zero"
		return out
	}

	risk := decimal.NewFromFloat(user.AccountBalance).
		Mul(decimal.NewFromFloat(user.RiskPerTradePct)).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromFloat(out.QualityMultiplier))
	perLot := decimal.NewFromFloat(out.StopPips).Mul(decimal.NewFromFloat(out.PipValuePerLot))

	lots := risk.Div(perLot).Div(lotStep).Floor().Mul(lotStep)

	out.RiskAmount, _ = risk.Round(2).Float64()
	out.Lots, _ = lots.Float64()
	if out.Lots <= 0 {
		out.Reason = "risk budget below one micro lot"
		return out
	}
	out.Eligible = true
	return out
}
