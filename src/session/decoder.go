package session

import (
	"fmt"

	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/models"
)

// -----------------------------------------------------------------------------

// decodeFrame parses one gateway frame and checks that the payload its type
// announces is present. A nil frame with a nil error means "ignore".
func decodeFrame(serializer interfaces.ISerializer, data []byte) (*models.MFrame, error) {
	frame := &models.MFrame{}
	if err := serializer.Unmarshal(data, frame); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	switch frame.Type {
	case models.FrameLoginAck, models.FrameLoginReject, models.FrameLog, models.FrameError:
		return frame, nil

	case models.FrameDictionary:
		if frame.Dictionary == nil {
			frame.Dictionary = map[models.MFieldID]string{}
		}
		return frame, nil

	case models.FrameRefresh:
		if frame.Refresh == nil {
			return nil, fmt.Errorf("refresh frame for handle %d without payload", frame.Handle)
		}
		return frame, nil

	case models.FrameUpdate:
		if frame.Update == nil {
			return nil, fmt.Errorf("update frame for handle %d without payload", frame.Handle)
		}
		return frame, nil

	case models.FrameSubscriptionStatus:
		if frame.SubscriptionStatus == nil {
			return nil, fmt.Errorf("subscription status frame for handle %d without payload", frame.Handle)
		}
		return frame, nil

	case models.FrameTopicStatus:
		if frame.TopicStatus == nil {
			return nil, fmt.Errorf("topic status frame for handle %d without payload", frame.Handle)
		}
		return frame, nil

	case "":
		return nil, fmt.Errorf("frame without type")

	default:
		// Unknown frame types are skipped so newer bridges stay compatible
		return nil, nil
	}
}
