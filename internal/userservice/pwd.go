package userservice

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 12

// set hashes pwd. bcrypt ignores input past 72 bytes, which validatePassword already rejects.
func (p *Password) set(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), passwordCost)
	if err != nil {
		return err
	}

	p.Plain = pwd
	p.hash = hash

	return nil
}

// compare reports whether pwd matches the stored hash. A mismatch is not an error.
func (p *Password) compare(pwd string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(p.hash, []byte(pwd))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return err == nil, err
}

// needsRehash reports whether the stored hash was produced with a different cost than the
// current one.
func (p *Password) needsRehash() bool {
	cost, err := bcrypt.Cost(p.hash)
	return err != nil || cost != passwordCost
}
