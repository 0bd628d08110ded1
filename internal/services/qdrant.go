package services

import (
	"context"
	"fmt"
	"log/slog"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/verityhq/compliance-auditor/internal/models"
)

// Qdrant stores and searches embedded document chunks in a Qdrant instance
// over its gRPC interface.
type Qdrant struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient

	logger *slog.Logger
}

// NewQdrant connects to the Qdrant gRPC endpoint at host:port.
func NewQdrant(host string, port int, logger *slog.Logger) (*Qdrant, error) {
	conn, err := grpc.Dial(fmt.Sprintf("%s:%d", host, port),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("error connecting to qdrant: %w", err)
	}

	return &Qdrant{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
		logger:      logger.With(slog.String("module", "qdrant")),
	}, nil
}

// Close releases the gRPC connection.
func (q *Qdrant) Close() error {
	return q.conn.Close()
}

// EnsureCollection creates the named collection with the given vector
// dimension if it does not exist yet.
func (q *Qdrant) EnsureCollection(ctx context.Context, name string, dimension int) error {
	collections, err := q.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("error listing collections: %w", err)
	}

	for _, col := range collections.GetCollections() {
		if col.GetName() == name {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrantclient.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("error creating collection %s: %w", name, err)
	}

	q.logger.Info("Created collection", slog.String("name", name), slog.Int("dimension", dimension))

	return nil
}

// Upsert writes the given points into the collection.
func (q *Qdrant) Upsert(ctx context.Context, collection string, points []models.Point) error {
	if len(points) == 0 {
		return nil
	}

	qps := make([]*qdrantclient.PointStruct, len(points))
	for i, p := range points {
		qps[i] = &qdrantclient.PointStruct{
			Id: &qdrantclient.PointId{
				PointIdOptions: &qdrantclient.PointId_Uuid{
					Uuid: p.ID,
				},
			},
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{
						Data: p.Vector,
					},
				},
			},
			Payload: map[string]*qdrantclient.Value{
				"text":        {Kind: &qdrantclient.Value_StringValue{StringValue: p.Text}},
				"doc_id":      {Kind: &qdrantclient.Value_StringValue{StringValue: p.DocID}},
				"chunk_index": {Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(p.ChunkIndex)}},
			},
		}
	}

	if _, err := q.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: collection,
		Points:         qps,
	}); err != nil {
		return fmt.Errorf("error upserting points: %w", err)
	}

	return nil
}

func docIDFilter(docIDs []string) *qdrantclient.Filter {
	if len(docIDs) == 0 {
		return nil
	}
	return &qdrantclient.Filter{
		Must: []*qdrantclient.Condition{
			{
				ConditionOneOf: &qdrantclient.Condition_Field{
					Field: &qdrantclient.FieldCondition{
						Key: "doc_id",
						Match: &qdrantclient.Match{
							MatchValue: &qdrantclient.Match_Keywords{
								Keywords: &qdrantclient.RepeatedStrings{
									Strings: docIDs,
								},
							},
						},
					},
				},
			},
		},
	}
}

// Search returns the chunks most similar to vector, restricted to the given
// document ids when docIDs is non-empty.
func (q *Qdrant) Search(ctx context.Context, collection string, vector []float32, limit int, docIDs []string) ([]models.SearchResult, error) {
	resp, err := q.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter:         docIDFilter(docIDs),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Include{
				Include: &qdrantclient.PayloadIncludeSelector{
					Fields: []string{"text", "doc_id"},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error searching points: %w", err)
	}

	results := make([]models.SearchResult, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		res := models.SearchResult{
			Score: point.GetScore(),
		}
		if v, ok := point.Payload["text"]; ok {
			res.Text = v.GetStringValue()
		}
		if v, ok := point.Payload["doc_id"]; ok {
			res.DocID = v.GetStringValue()
		}
		results = append(results, res)
	}

	return results, nil
}

// DeleteByDoc removes every point belonging to the given document.
func (q *Qdrant) DeleteByDoc(ctx context.Context, collection, docID string) error {
	if _, err := q.points.Delete(ctx, &qdrantclient.DeletePoints{
		CollectionName: collection,
		Points: &qdrantclient.PointsSelector{
			PointsSelectorOneOf: &qdrantclient.PointsSelector_Filter{
				Filter: docIDFilter([]string{docID}),
			},
		},
	}); err != nil {
		return fmt.Errorf("error deleting points for %s: %w", docID, err)
	}

	return nil
}
