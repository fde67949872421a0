package mqtt

import "fmt"

// Subscribe registers handler for every message matching filter.
//
// Filters may use "+" for one level and "#" for the rest, e.g. "ruuvi/#".
// The subscription is remembered and restored after a reconnect. On
// failure it is forgotten again.
//
// Example:
//
//	err := client.Subscribe("ruuvi/#", 1, bridge.HandleMessage)
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	switch {
	case filter == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subs[filter] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	if err := await(c.paho.Subscribe(filter, qos, c.deliver(handler)), ErrSubscribeFailed); err != nil {
		c.forget(filter)
		return err
	}
	c.log().Debug("MQTT subscribed", "filter", filter, "qos", qos)
	return nil
}

// Unsubscribe stops delivery for filter. Messages already in flight may
// still arrive.
func (c *Client) Unsubscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(filter)
	return await(c.paho.Unsubscribe(filter), ErrUnsubscribeFailed)
}

func (c *Client) forget(filter string) {
	c.subMu.Lock()
	delete(c.subs, filter)
	c.subMu.Unlock()
}

// SubscriptionCount returns the number of remembered subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs)
}
