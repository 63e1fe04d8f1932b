// Package mqtt provides the MQTT bus client for EdgeLink Core.
//
// The core uses MQTT in three directions:
//   - device drivers publish live channel values on edgelink/state/{component}/{channel}
//   - controllers publish commands on edgelink/command/{component}/{command}
//   - the core publishes retained edge metadata on edgelink/edge/{id}/status
//     and its own liveness on edgelink/system/status (with a Last Will)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Options{Version: version, Logger: log})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllChannelStates(), 1,
//	    func(topic string, payload []byte) error {
//	        comp, ch, _ := mqtt.Topics{}.ParseChannelState(topic)
//	        ...
//	    })
//
// TLS should be enabled for any broker outside the host.
package mqtt
