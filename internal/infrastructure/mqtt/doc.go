// Package mqtt connects the Z-Wave bridge to the Gray Logic MQTT broker.
//
// It wraps paho.mqtt.golang with:
//   - auto-reconnect with backoff and subscription restore
//   - a caller-supplied last will (the bridge registers an offline health message)
//   - payload, topic and QoS validation on publish
//   - panic recovery around message handlers
//
// # Usage
//
//	will := &mqtt.Will{Topic: "graylogic/health/zwave", Payload: lwt, QoS: 1, Retained: true}
//	client, err := mqtt.Connect(cfg.MQTT, will)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("graylogic/command/zwave/#", 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
//
// Tests other than option building need a broker at 127.0.0.1:1883 and are
// skipped when none is reachable.
package mqtt
