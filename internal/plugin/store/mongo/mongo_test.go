package mongo

import (
	"errors"
	"testing"

	registrystore "github.com/docuflow/content-migrator/internal/registry/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// The anti-join must stay inside the pipeline: materializing converted IDs
// into the filter grows the query with every converted record and
// eventually exceeds the BSON document limit.
func TestSourcePipelineAntiJoinIsServerSide(t *testing.T) {
	after := uuid.New()
	pipeline := sourcePipeline(&after)
	require.Len(t, pipeline, 4)

	keyset := pipeline[0][0]
	assert.Equal(t, "$match", keyset.Key)
	assert.Equal(t, bson.M{"_id": bson.M{"$gt": after.String()}}, keyset.Value)

	lookup := pipeline[1][0]
	assert.Equal(t, "$lookup", lookup.Key)
	assert.Equal(t, bson.M{
		"from":         "content_versions",
		"localField":   "_id",
		"foreignField": "original_record_id",
		"as":           "converted",
	}, lookup.Value)

	unconverted := pipeline[2][0]
	assert.Equal(t, "$match", unconverted.Key)
	assert.Equal(t, bson.M{"converted": bson.M{"$size": 0}}, unconverted.Value)

	assert.Equal(t, "$sort", pipeline[3][0].Key)
}

func TestSourcePipelineWithoutCursorSkipsKeysetStage(t *testing.T) {
	pipeline := sourcePipeline(nil)
	require.Len(t, pipeline, 3)
	assert.Equal(t, "$lookup", pipeline[0][0].Key)
}

func TestCollectionExists(t *testing.T) {
	assert.True(t, collectionExists(mongo.CommandError{Code: 48, Name: "NamespaceExists"}))
	assert.False(t, collectionExists(mongo.CommandError{Code: 13, Name: "Unauthorized"}))
	assert.False(t, collectionExists(errors.New("connection refused")))
}

func TestMongoPluginRegistered(t *testing.T) {
	assert.Contains(t, registrystore.Names(), "mongo")
}
