package partyerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrCarriesCode(t *testing.T) {
	err := PartyFull.Err("p1")
	assert.Equal(t, PartyFull, CodeOf(err))
	assert.True(t, HasCode(err, PartyFull))
	assert.False(t, HasCode(err, UserOffline))
	assert.Equal(t, "partyFull: p1", err.Error())
}

func TestErrWithoutMessage(t *testing.T) {
	err := UserOffline.Err()
	assert.Equal(t, "userOffline", err.Error())
}

func TestCodeOfUncoded(t *testing.T) {
	assert.Equal(t, DefaultErr, CodeOf(errors.New("plain")))
	assert.False(t, HasCode(nil, DefaultErr))
}

func TestCodeSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling request: %w", InvalidAction.Err("nope"))
	assert.True(t, HasCode(wrapped, InvalidAction))
	assert.Equal(t, InvalidAction, CodeOf(wrapped))
}

func TestFrom(t *testing.T) {
	coded := From(InsufficientPermissions.Err("x"))
	assert.Equal(t, InsufficientPermissions, coded.ErrorCode())

	uncoded := From(errors.New("boom"))
	assert.Equal(t, DefaultErr, uncoded.ErrorCode())
	assert.Equal(t, "unknown: boom", uncoded.Error())
}

func TestUnknownCodeName(t *testing.T) {
	assert.Equal(t, "unknown", ErrorCode(12345).Name())
}
