package ipc

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/subscription"
)

// Qos is an MQTT quality of service level. It is forwarded to the nucleus
// verbatim.
type Qos uint8

const (
	QosAtMostOnce  Qos = 0
	QosAtLeastOnce Qos = 1
)

// maxQos is the highest level MQTT defines.
const maxQos = 2

func (q Qos) param() (object.Object[object.Shared], error) {
	if q > maxQos {
		return object.Object[object.Shared]{}, ggerr.Errorf(ggerr.Invalid, "QoS %d must be <= %d", q, maxQos)
	}
	return object.Buf[object.Shared](strconv.Itoa(int(q))), nil
}

// PublishToIoTCore publishes payload to an AWS IoT Core MQTT topic.
func (c *Client) PublishToIoTCore(ctx context.Context, topicName string, payload []byte, qos Qos) error {
	return c.PublishToIoTCoreB64(ctx, topicName, base64.StdEncoding.EncodeToString(payload), qos)
}

// PublishToIoTCoreB64 publishes a payload that is already base64 encoded.
func (c *Client) PublishToIoTCoreB64(ctx context.Context, topicName, b64Payload string, qos Qos) error {
	q, err := qos.param()
	if err != nil {
		return err
	}
	params, _ := object.NewMap(
		object.NewKV("topicName", object.Buf[object.Shared](topicName)),
		object.NewKV("payload", object.Buf[object.Shared](b64Payload)),
		object.NewKV("qos", q),
	).AsMap()
	return c.invoke(ctx, OpPublishToIoTCore, params, nil)
}

// SubscribeToIoTCore calls cb for every message AWS IoT Core delivers on a
// topic matching filter. The payload passed to cb is a fresh slice.
// cb runs on the receive goroutine and must not make blocking requests on c;
// see the package documentation.
func (c *Client) SubscribeToIoTCore(ctx context.Context, filter string, qos Qos, cb func(topic string, payload []byte)) (*subscription.Subscription, error) {
	q, err := qos.param()
	if err != nil {
		return nil, err
	}
	params, _ := object.NewMap(
		object.NewKV("topicName", object.Buf[object.Shared](filter)),
		object.NewKV("qos", q),
	).AsMap()

	return c.subscribe(ctx, OpSubscribeToIoTCore, params, func(event object.Map[object.Shared]) error {
		var msg object.Object[object.Shared]
		if err := event.Validate(object.Required("message", object.TypeMap, &msg)); err != nil {
			return ggerr.Wrap(ggerr.Invalid, "IoT Core message", err)
		}
		mm, _ := msg.AsMap()

		var topicObj, payloadObj object.Object[object.Shared]
		err := mm.Validate(
			object.Required("topicName", object.TypeBuf, &topicObj),
			object.Required("payload", object.TypeBuf, &payloadObj),
		)
		if err != nil {
			return ggerr.Wrap(ggerr.Invalid, "IoT Core message", err)
		}

		b64, _ := payloadObj.AsBuf()
		payload, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return ggerr.Wrap(ggerr.Invalid, "IoT Core payload is not base64", err)
		}
		topic, _ := topicObj.AsBuf()
		cb(topic, payload)
		return nil
	})
}
