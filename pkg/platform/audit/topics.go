package audit

// Kafka topic layout: one topic per event category so retention and
// consumer lag policies can differ per category.
const topicPrefix = "audit."

// TopicForCategory returns the Kafka topic for an event category.
func TopicForCategory(category EventCategory) string {
	return topicPrefix + string(category)
}

// TopicForAction returns the Kafka topic for an audit action, derived
// through its category.
func TopicForAction(action string) string {
	return TopicForCategory(AuditEvent(action).Category())
}

// Topics returns every audit topic, for topic creation at startup and
// consumer subscription.
func Topics() []string {
	return []string{
		TopicForCategory(CategoryCompliance),
		TopicForCategory(CategorySecurity),
		TopicForCategory(CategoryOperations),
	}
}
