package grpc

import (
	"fmt"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/godilite/score-stats/internal/service"
)

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func boolField(in *structpb.Struct, key string) bool {
	return in.GetFields()[key].GetBoolValue()
}

// intField reads a whole number. Struct numbers are float64 on the wire.
func intField(in *structpb.Struct, key string) (int, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", key)
	}
	if n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", key)
	}
	return int(n.NumberValue), nil
}

// scoreField accepts the raw field text as a string, or a number which is
// formatted the way it would have been typed.
func scoreField(in *structpb.Struct, key string) string {
	v := in.GetFields()[key]
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return fmt.Sprint(k.NumberValue)
	case *structpb.Value_StringValue:
		return k.StringValue
	default:
		return ""
	}
}

func stringsToList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func intsToList(in []int) []any {
	out := make([]any, len(in))
	for i, n := range in {
		out[i] = n
	}
	return out
}

func formToMap(f service.FormView) map[string]any {
	return map[string]any{
		"state":          f.State.String(),
		"reviewer_count": len(f.Fields),
		"fields":         stringsToList(f.Fields),
		"field_errors":   stringsToList(f.FieldErrors),
	}
}

func submissionToMap(s service.Submission) map[string]any {
	return map[string]any{
		"scores":  intsToList(s.Scores),
		"average": s.Average,
	}
}

func distributionToMap(d service.Distribution) map[string]any {
	averages := make([]any, len(d.Averages))
	for i, b := range d.Averages {
		averages[i] = map[string]any{
			"range": b.Label,
			"min":   b.Min,
			"max":   b.Max,
			"count": b.Count,
		}
	}
	raw := make([]any, len(d.RawScores))
	for i, b := range d.RawScores {
		raw[i] = map[string]any{
			"score": b.Score,
			"count": b.Count,
		}
	}
	return map[string]any{
		"averages":           averages,
		"raw_scores":         raw,
		"user_bucket":        d.UserBucket,
		"total":              d.Total,
		"dropped_averages":   d.DroppedAverages,
		"dropped_raw_scores": d.DroppedRawScores,
	}
}

func resultToMap(r service.ResultView) map[string]any {
	return map[string]any{
		"state":        service.StateResult.String(),
		"submission":   submissionToMap(r.Submission),
		"distribution": distributionToMap(r.Distribution),
		"warning":      r.Warning,
		"degraded":     r.Degraded,
	}
}

func analysisToMap(a service.AnalysisResult, loading bool) map[string]any {
	return map[string]any{
		"loading":       loading,
		"prediction":    a.Prediction,
		"sentiment":     string(a.Sentiment),
		"analysis_text": a.AnalysisText,
	}
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
