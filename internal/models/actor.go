package models

import "github.com/golang-jwt/jwt/v5"

// Actor identifies who performed a change. Supplied by the external identity
// provider; the engine trusts it as given.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ActorClaims are the JWT claims issued by the identity provider.
type ActorClaims struct {
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts claims into the trail actor identity.
func (c ActorClaims) Actor() Actor {
	return Actor{ID: c.ActorID, Name: c.ActorName}
}
