package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/scraplinehq/scrapline-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	SubjectID uuid.UUID
	Kind      enums.ActorKind
	CrewID    *uuid.UUID
	JTI       string
}

// AccessTokenClaims is the typed JWT issued to collectors and crew devices.
// CrewID is carried for collectors who work inside a crew so ownership
// checks do not need a membership lookup on every request.
type AccessTokenClaims struct {
	SubjectID uuid.UUID       `json:"subject_id"`
	Kind      enums.ActorKind `json:"kind"`
	CrewID    *uuid.UUID      `json:"crew_id,omitempty"`
	jwt.RegisteredClaims
}
