package ipc

import (
	"context"
	"encoding/base64"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/subscription"
)

// TopicPayload is a message received on a local topic: either
// JSONPayload or BinaryPayload.
type TopicPayload interface {
	topicPayload()
}

// JSONPayload is a structured topic message. The map is only valid during
// the callback.
type JSONPayload struct {
	Map object.Map[object.Shared]
}

// BinaryPayload is a raw topic message, already base64-decoded.
type BinaryPayload struct {
	Data []byte
}

func (JSONPayload) topicPayload()   {}
func (BinaryPayload) topicPayload() {}

// PublishToTopicJSON publishes a structured message on a local topic.
func (c *Client) PublishToTopicJSON(ctx context.Context, topic string, payload object.Map[object.Shared]) error {
	msg := object.NewMap(object.NewKV("message", payload.Object()))
	return c.publishToTopic(ctx, topic, object.NewKV("jsonMessage", msg))
}

// PublishToTopicBinary publishes raw bytes on a local topic.
func (c *Client) PublishToTopicBinary(ctx context.Context, topic string, payload []byte) error {
	return c.PublishToTopicBinaryB64(ctx, topic, base64.StdEncoding.EncodeToString(payload))
}

// PublishToTopicBinaryB64 publishes a payload that is already base64
// encoded.
func (c *Client) PublishToTopicBinaryB64(ctx context.Context, topic, b64Payload string) error {
	msg := object.NewMap(object.NewKV("message", object.Buf[object.Shared](b64Payload)))
	return c.publishToTopic(ctx, topic, object.NewKV("binaryMessage", msg))
}

func (c *Client) publishToTopic(ctx context.Context, topic string, message object.KV[object.Shared]) error {
	params, _ := object.NewMap(
		object.NewKV("topic", object.Buf[object.Shared](topic)),
		object.NewKV("publishMessage", object.NewMap(message)),
	).AsMap()
	return c.invoke(ctx, OpPublishToTopic, params, nil)
}

// SubscribeToTopic calls cb for every message published on topic.
// cb runs on the receive goroutine and must not make blocking requests on c;
// see the package documentation.
func (c *Client) SubscribeToTopic(ctx context.Context, topic string, cb func(topic string, payload TopicPayload)) (*subscription.Subscription, error) {
	params, _ := object.NewMap(object.NewKV("topic", object.Buf[object.Shared](topic))).AsMap()

	return c.subscribe(ctx, OpSubscribeToTopic, params, func(event object.Map[object.Shared]) error {
		topic, payload, err := parseTopicMessage(event)
		if err != nil {
			return err
		}
		cb(topic, payload)
		return nil
	})
}

// parseTopicMessage extracts the topic and payload of a
// SubscriptionResponseMessage.
func parseTopicMessage(event object.Map[object.Shared]) (string, TopicPayload, error) {
	var jsonMsg, binMsg object.Object[object.Shared]
	err := event.Validate(
		object.Optional("jsonMessage", object.TypeMap, &jsonMsg),
		object.Optional("binaryMessage", object.TypeMap, &binMsg),
	)
	if err != nil {
		return "", nil, ggerr.Wrap(ggerr.Invalid, "pubsub message", err)
	}
	isJSON := jsonMsg.Type() == object.TypeMap
	if isJSON == (binMsg.Type() == object.TypeMap) {
		return "", nil, ggerr.Errorf(ggerr.Invalid, "pubsub message must carry exactly one of jsonMessage and binaryMessage")
	}

	wrapper, _ := binMsg.AsMap()
	wantType := object.TypeBuf
	if isJSON {
		wrapper, _ = jsonMsg.AsMap()
		wantType = object.TypeMap
	}

	var message, msgCtx object.Object[object.Shared]
	err = wrapper.Validate(
		object.Required("message", wantType, &message),
		object.Required("context", object.TypeMap, &msgCtx),
	)
	if err != nil {
		return "", nil, ggerr.Wrap(ggerr.Invalid, "pubsub message", err)
	}

	ctxMap, _ := msgCtx.AsMap()
	var topicObj object.Object[object.Shared]
	if err := ctxMap.Validate(object.Required("topic", object.TypeBuf, &topicObj)); err != nil {
		return "", nil, ggerr.Wrap(ggerr.Invalid, "pubsub message context", err)
	}
	topic, _ := topicObj.AsBuf()

	if isJSON {
		m, _ := message.AsMap()
		return topic, JSONPayload{Map: m}, nil
	}
	b64, _ := message.AsBuf()
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, ggerr.Wrap(ggerr.Invalid, "pubsub payload is not base64", err)
	}
	return topic, BinaryPayload{Data: data}, nil
}
