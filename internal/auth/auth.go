// Package auth resolves bearer tokens into an Actor with per-project
// capabilities.
package auth

import (
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Actor is an authenticated caller with capability predicates over projects.
// Guardians administer only their own children; project staff administer a
// set of projects; publishers additionally flip visibility.
type Actor struct {
	ID uuid.UUID

	// AdminProjects the actor can administer (events, occurrences, passwords).
	AdminProjects map[uuid.UUID]bool
	// PublisherProjects the actor can publish events and groups in.
	PublisherProjects map[uuid.UUID]bool
	// EventGroupProjects the actor can manage event groups in.
	EventGroupProjects map[uuid.UUID]bool
}

// CanAdministerProject reports whether the actor administers the project.
func (a *Actor) CanAdministerProject(projectID uuid.UUID) bool {
	return a.AdminProjects[projectID]
}

// CanPublish reports whether the actor may publish in the project.
func (a *Actor) CanPublish(projectID uuid.UUID) bool {
	return a.PublisherProjects[projectID]
}

// CanManageEventGroups reports whether the actor may manage event groups in
// the project.
func (a *Actor) CanManageEventGroups(projectID uuid.UUID) bool {
	return a.EventGroupProjects[projectID]
}

// Claims is the JWT payload carried by actor bearer tokens.
type Claims struct {
	AdminProjects      []string `json:"admin_projects,omitempty"`
	PublisherProjects  []string `json:"publisher_projects,omitempty"`
	EventGroupProjects []string `json:"event_group_projects,omitempty"`
	jwt.RegisteredClaims
}

// TokenParser verifies bearer tokens and builds Actors from them.
type TokenParser struct {
	secret []byte
}

// NewTokenParser constructs a TokenParser with the given signing secret.
func NewTokenParser(secret []byte) *TokenParser {
	return &TokenParser{secret: secret}
}

// Parse verifies the token and returns the Actor it represents.
func (p *TokenParser) Parse(tokenString string) (*Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.CodePermissionDenied, "unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Wrap(apperr.CodePermissionDenied, "invalid bearer token", err)
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePermissionDenied, "invalid subject in bearer token", err)
	}

	return &Actor{
		ID:                 actorID,
		AdminProjects:      toProjectSet(claims.AdminProjects),
		PublisherProjects:  toProjectSet(claims.PublisherProjects),
		EventGroupProjects: toProjectSet(claims.EventGroupProjects),
	}, nil
}

// Mint signs a token for the actor. Used by tests and provisioning tooling;
// production tokens come from the identity provider sharing the secret.
func (p *TokenParser) Mint(actor *Actor, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		AdminProjects:      fromProjectSet(actor.AdminProjects),
		PublisherProjects:  fromProjectSet(actor.PublisherProjects),
		EventGroupProjects: fromProjectSet(actor.EventGroupProjects),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

func toProjectSet(ids []string) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, raw := range ids {
		if id, err := uuid.Parse(raw); err == nil {
			set[id] = true
		}
	}
	return set
}

func fromProjectSet(set map[uuid.UUID]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id.String())
	}
	return ids
}
