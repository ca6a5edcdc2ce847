// Package mqtt is the outbound broker connection. Reset links are not
// mailed by the backend: they are published as JSON to habitat/notify/email
// and a relay subscribed to that topic delivers them.
//
// The client keeps a retained online/offline message on
// habitat/system/status, with the offline variant registered as the will.
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.PublishJSON(mqtt.Topics{}.Notify("email"), msg)
package mqtt
