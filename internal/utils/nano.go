package utils

import gonanoid "github.com/matoous/go-nanoid/v2"

var (
	AccessCodeSize     = 8
	accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// AccessCode returns a random code field agents type to reach a campaign.
func AccessCode() string {
	return gonanoid.MustGenerate(accessCodeAlphabet, AccessCodeSize)
}
