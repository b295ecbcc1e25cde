package handlers

import (
	"fmt"
	"sort"
	"strings"

	"activ-subscriber/src/models"
)

// labelWidth is the column where dotted-leader values start
const labelWidth = 45

// -----------------------------------------------------------------------------

// dotted renders "Label ........ value" with values aligned on labelWidth
func dotted(label string, value interface{}) string {
	dots := labelWidth - len(label) - 2
	if dots < 3 {
		dots = 3
	}
	return fmt.Sprintf("%s %s %v", label, strings.Repeat(".", dots), value)
}

// -----------------------------------------------------------------------------

// fieldLines renders one dotted line per field, ordered by field id.
// A nil map yields no lines.
func fieldLines(fields models.MFieldMap, metadata *models.MMetadata) []string {
	if len(fields) == 0 {
		return nil
	}

	ids := make([]models.MFieldID, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		label := fmt.Sprintf("Field %d", id)
		if name, ok := metadata.FieldName(id); ok {
			label = fmt.Sprintf("Field %d (%s)", id, name)
		}
		lines = append(lines, dotted(label, formatValue(fields[id])))
	}
	return lines
}

// -----------------------------------------------------------------------------

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<empty>"
	case float64:
		// integral values arrive as float64 from JSON
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// -----------------------------------------------------------------------------

func refreshLines(msg *models.MRefreshMessage, metadata *models.MMetadata) []string {
	lines := []string{
		dotted("Data source", msg.DataSourceID),
		dotted("Symbology", msg.SymbologyID),
		dotted("Symbol", msg.Symbol),
		dotted("Topic subscription state", msg.TopicSubscriptionState),
		dotted("Topic type", msg.TopicType),
		dotted("Update id", msg.UpdateID),
		dotted("Permission id", msg.PermissionID),
	}
	return append(lines, fieldLines(msg.Fields, metadata)...)
}

func updateLines(msg *models.MUpdateMessage, metadata *models.MMetadata) []string {
	lines := []string{
		dotted("Data source", msg.DataSourceID),
		dotted("Symbology", msg.SymbologyID),
		dotted("Symbol", msg.Symbol),
		dotted("Update type", msg.UpdateType),
		dotted("Topic subscription state", msg.TopicSubscriptionState),
		dotted("Topic type", msg.TopicType),
		dotted("Update id", msg.UpdateID),
		dotted("Event type", msg.EventType),
		dotted("Permission id", msg.PermissionID),
	}
	return append(lines, fieldLines(msg.Fields, metadata)...)
}

func subscriptionStatusLines(msg *models.MSubscriptionStatusMessage) []string {
	return []string{
		dotted("Data source", msg.DataSourceID),
		dotted("Symbology", msg.SymbologyID),
		dotted("Request", msg.Request),
		dotted("State", msg.State),
	}
}

func topicStatusLines(msg *models.MTopicStatusMessage) []string {
	return []string{
		dotted("Data source", msg.DataSourceID),
		dotted("Symbology", msg.SymbologyID),
		dotted("Symbol", msg.Symbol),
		dotted("Topic subscription state", msg.TopicSubscriptionState),
		dotted("Topic type", msg.TopicType),
	}
}

// -----------------------------------------------------------------------------

// RefreshMessageToString renders a refresh message as multi-line text
func RefreshMessageToString(msg *models.MRefreshMessage, metadata *models.MMetadata) string {
	if msg == nil {
		return ""
	}
	return strings.Join(refreshLines(msg, metadata), "\n")
}

// UpdateMessageToString renders an update message as multi-line text
func UpdateMessageToString(msg *models.MUpdateMessage, metadata *models.MMetadata) string {
	if msg == nil {
		return ""
	}
	return strings.Join(updateLines(msg, metadata), "\n")
}

// SubscriptionStatusMessageToString renders a subscription status message as multi-line text
func SubscriptionStatusMessageToString(msg *models.MSubscriptionStatusMessage) string {
	if msg == nil {
		return ""
	}
	return strings.Join(subscriptionStatusLines(msg), "\n")
}

// TopicStatusMessageToString renders a topic status message as multi-line text
func TopicStatusMessageToString(msg *models.MTopicStatusMessage) string {
	if msg == nil {
		return ""
	}
	return strings.Join(topicStatusLines(msg), "\n")
}
