package escrow

import (
	"strings"
)

type createRequest struct {
	WagerID  uint64 `json:"wager_id"`
	Amount   uint64 `json:"amount"`
	Deadline int64  `json:"deadline"`
	Arbiter  string `json:"arbiter"`
}

// winnerParam accepts both "joiner" and 1.
type winnerParam string

func (w *winnerParam) UnmarshalJSON(data []byte) error {
	*w = winnerParam(strings.Trim(string(data), `"`))
	return nil
}

type settleRequest struct {
	Winner  winnerParam `json:"winner"`
	Creator string      `json:"creator"`
	Joiner  string      `json:"joiner"`
}

type refundRequest struct {
	Creator string `json:"creator"`
	Joiner  string `json:"joiner"`
}

type wagerResponse struct {
	WagerID       uint64 `json:"wager_id"`
	State         string `json:"state"`
	Creator       string `json:"creator"`
	Joiner        string `json:"joiner"`
	Arbiter       string `json:"arbiter"`
	Amount        uint64 `json:"amount"`
	Deadline      int64  `json:"deadline"`
	RecordAddress string `json:"record_address"`
	VaultAddress  string `json:"vault_address"`
	VaultBalance  int64  `json:"vault_balance"`
}

func toResponse(s Snapshot) wagerResponse {
	return wagerResponse{
		WagerID:       s.Record.WagerID,
		State:         s.Record.State.String(),
		Creator:       s.Record.Creator.String(),
		Joiner:        s.Record.Joiner.String(),
		Arbiter:       s.Record.Arbiter.String(),
		Amount:        s.Record.Amount,
		Deadline:      s.Record.Deadline,
		RecordAddress: s.RecordAddress.String(),
		VaultAddress:  s.VaultAddress.String(),
		VaultBalance:  s.VaultBalance,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
