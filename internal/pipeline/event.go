package pipeline

import (
	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// RunRequest identifies one run to process.
type RunRequest struct {
	ID       string
	Query    string
	Location string
}

// RecordsFromDynamoDB extracts run requests from a runs-table stream batch.
// Only INSERT records are considered; records missing an id or query are
// skipped with a log line.
func RecordsFromDynamoDB(ev events.DynamoDBEvent) []RunRequest {
	var out []RunRequest
	for _, rec := range ev.Records {
		if rec.EventName != string(events.DynamoDBOperationTypeInsert) {
			continue
		}

		req := RunRequest{
			ID:       stringAttr(rec.Change.Keys, "id"),
			Query:    stringAttr(rec.Change.NewImage, "query"),
			Location: stringAttr(rec.Change.NewImage, "location"),
		}
		if req.ID == "" || req.Query == "" {
			zap.L().Info("pipeline: skipping record without run id or query",
				zap.String("event_id", rec.EventID),
			)
			continue
		}
		out = append(out, req)
	}
	return out
}

func stringAttr(m map[string]events.DynamoDBAttributeValue, name string) string {
	av, ok := m[name]
	if !ok || av.DataType() != events.DataTypeString {
		return ""
	}
	return av.String()
}
