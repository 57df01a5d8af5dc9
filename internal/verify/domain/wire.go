package domain

import "github.com/aussiebroadwan/vouchercheck/pkg/verifysdk"

// ToWire converts a request into its JSON representation shared by the
// HTTP API and real-time events.
func (r VerificationRequest) ToWire() verifysdk.Request {
	return verifysdk.Request{
		ID:                    r.ID,
		OwnerUserID:           r.OwnerUserID,
		SubmitterIsRegistered: r.SubmitterIsRegistered,
		Payload: verifysdk.Payload{
			Name:   r.Payload.Name,
			Email:  r.Payload.Email,
			Phone:  r.Payload.Phone,
			Code:   r.Payload.Code,
			Amount: r.Payload.Amount,
		},
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ToWire converts a user into its public JSON representation.
func (u User) ToWire() verifysdk.UserResponse {
	return verifysdk.UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Role:          u.Role,
		Authenticated: u.Authenticated,
		CreatedAt:     u.CreatedAt,
	}
}
