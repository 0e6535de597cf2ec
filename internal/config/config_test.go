package config_test

import (
	"context"
	"testing"

	"github.com/docuflow/content-migrator/internal/config"
	"github.com/docuflow/content-migrator/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, "postgres", cfg.DatastoreType)
	assert.True(t, cfg.DatastoreMigrateAtStart)
	assert.Equal(t, 200, cfg.ChunkSize)
	assert.False(t, cfg.DeleteSources)
	assert.Equal(t, []model.SourceKind{model.SourceKindAttachment, model.SourceKindNote}, cfg.Kinds())
}

func TestKindsParsing(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want []model.SourceKind
	}{
		{"attachments", []model.SourceKind{model.SourceKindAttachment}},
		{"notes", []model.SourceKind{model.SourceKindNote}},
		{"notes,attachments", []model.SourceKind{model.SourceKindNote, model.SourceKindAttachment}},
		{" Attachment , note ", []model.SourceKind{model.SourceKindAttachment, model.SourceKindNote}},
		{"", nil},
		{"bogus,,notes", []model.SourceKind{model.SourceKindNote}},
	} {
		t.Run(tc.raw, func(t *testing.T) {
			cfg := config.Config{SourceKinds: tc.raw}
			assert.Equal(t, tc.want, cfg.Kinds())
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ActorID = "migrator"

	ctx := config.WithContext(context.Background(), &cfg)
	got := config.FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "migrator", got.ActorID)

	assert.Nil(t, config.FromContext(context.Background()))
}
