package database

import (
	"testing"

	modelspkg "bitboard/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesModerationTables(t *testing.T) {
	var hasBan, hasAction bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.UserBan:
			hasBan = true
		case *modelspkg.ModerationAction:
			hasAction = true
		}
	}
	require.True(t, hasBan, "PersistentModels should include UserBan")
	require.True(t, hasAction, "PersistentModels should include ModerationAction")
}
