package nakama

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"ludo/internal/domain"
)

// encodeLabel renders the match label searched by Nakama's match listing.
func encodeLabel(l domain.LabelPayload) (string, error) {
	label, err := structpb.NewStruct(map[string]interface{}{
		"open":     l.Open,
		"game":     l.Game,
		"mode":     l.Mode,
		"status":   l.Status,
		"code":     l.Code,
		"room_id":  l.RoomID,
		"players":  l.Players,
		"capacity": l.Capacity,
		"private":  l.Private,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build label: %w", err)
	}
	b, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(label)
	if err != nil {
		return "", fmt.Errorf("failed to marshal label: %w", err)
	}
	return string(b), nil
}
