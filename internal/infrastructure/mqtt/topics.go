package mqtt

import "fmt"

// TopicPrefix is the root of every habitatT topic.
const TopicPrefix = "habitat"

// Topics provides builders for habitatT MQTT topics.
//
//	topic := mqtt.Topics{}.Notify("email")
//	// Returns: "habitat/notify/email"
type Topics struct{}

// SystemStatus returns the retained online/offline status topic.
//
// Example: habitat/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// Notify returns the topic a notification relay consumes for channel.
//
// Example: habitat/notify/email
func (Topics) Notify(channel string) string {
	return fmt.Sprintf("%s/notify/%s", TopicPrefix, channel)
}
