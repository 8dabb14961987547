// Package reference implements the opaque enrolment reference codec used on
// printed and scanned tickets.
//
// A reference is a compact HS256 JWT whose only claim is the enrolment id.
// No timestamps are included, so encoding the same enrolment always yields
// the same string, and a neighbouring reference cannot be derived without the
// signing key.
package reference

import (
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const enrolmentClaim = "enr"

// Codec encodes and decodes enrolment references.
type Codec struct {
	secret []byte
}

// NewCodec constructs a Codec with the given signing secret.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret}
}

// Encode produces the opaque reference string for an enrolment id.
func (c *Codec) Encode(enrolmentID uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		enrolmentClaim: enrolmentID.String(),
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeUnknown, "sign reference", err)
	}
	return signed, nil
}

// Decode verifies a reference and returns the enrolment identity it names.
// Any structural or signature problem yields MalformedReference; whether the
// enrolment still exists is the caller's concern.
func (c *Codec) Decode(ref string) (uuid.UUID, error) {
	token, err := jwt.Parse(ref, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.CodeMalformedReference, "unexpected signing method")
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperr.Wrap(apperr.CodeMalformedReference, "invalid reference", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperr.New(apperr.CodeMalformedReference, "invalid reference claims")
	}
	raw, ok := claims[enrolmentClaim].(string)
	if !ok {
		return uuid.Nil, apperr.New(apperr.CodeMalformedReference, "reference missing enrolment claim")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.CodeMalformedReference, "invalid enrolment id in reference", err)
	}
	return id, nil
}

// VerifyValidity reports whether a ticket is currently valid: the occurrence
// must not be in the past, independent of recorded attendance.
func VerifyValidity(occurrenceTime, now time.Time) bool {
	return !occurrenceTime.Before(now)
}
