package common

import (
	"errors"

	"lendpool/crypto"
)

var ErrUnauthorized = errors.New("caller not authorized")

// Authorizer gates administrative operations. Policy (who may call) lives
// behind this interface so engines only carry the mechanism of the check.
type Authorizer interface {
	Authorize(caller crypto.Address) error
}

// SingleOwner authorizes exactly one address.
type SingleOwner struct {
	owner crypto.Address
}

func NewSingleOwner(owner crypto.Address) SingleOwner {
	return SingleOwner{owner: owner}
}

func (s SingleOwner) Authorize(caller crypto.Address) error {
	if s.owner.IsZero() || !s.owner.Equal(caller) {
		return ErrUnauthorized
	}
	return nil
}

// AllowList authorizes any member of a fixed address set.
type AllowList struct {
	members []crypto.Address
}

func NewAllowList(members ...crypto.Address) AllowList {
	cloned := make([]crypto.Address, 0, len(members))
	for _, m := range members {
		if !m.IsZero() {
			cloned = append(cloned, m)
		}
	}
	return AllowList{members: cloned}
}

func (l AllowList) Authorize(caller crypto.Address) error {
	for _, m := range l.members {
		if m.Equal(caller) {
			return nil
		}
	}
	return ErrUnauthorized
}
