package mesh

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btmesh-go/mesh-go/pkg/bus"
)

type mockAgent struct {
	testifymock.Mock
}

func (a *mockAgent) DisplayNumeric(_ context.Context, kind string, number uint32) error {
	return a.Called(kind, number).Error(0)
}

func (a *mockAgent) DisplayString(_ context.Context, value string) error {
	return a.Called(value).Error(0)
}

func (a *mockAgent) PromptNumeric(_ context.Context, kind string) (uint32, error) {
	ret := a.Called(kind)
	return ret.Get(0).(uint32), ret.Error(1)
}

func (a *mockAgent) PromptStatic(_ context.Context, kind string) ([]byte, error) {
	ret := a.Called(kind)
	data, _ := ret.Get(0).([]byte)
	return data, ret.Error(1)
}

func (a *mockAgent) Cancel() {
	a.Called()
}

type capableAgent struct {
	mockAgent
}

func (a *capableAgent) Capabilities() []string {
	return []string{"in-numeric"}
}

func agentApp(delegate AgentDelegate) Application {
	app := twoElementApp()
	app.Agent = delegate
	return app
}

func TestAgentWithoutDelegate(t *testing.T) {
	s, conn, _ := newTestSession(t)
	register(t, s, agentApp(nil))

	_, err := conn.Call("/app/agent", ProvisionAgentInterface, "PromptNumeric", "in-numeric")
	requireReqError(t, err, ReqNotSupported)
	_, err = conn.Call("/app/agent", ProvisionAgentInterface, "PromptStatic", "static-oob")
	requireReqError(t, err, ReqNotSupported)
	_, err = conn.Call("/app/agent", ProvisionAgentInterface, "DisplayNumeric", "out-numeric", uint32(1234))
	requireReqError(t, err, ReqNotSupported)
	_, err = conn.Call("/app/agent", ProvisionAgentInterface, "DisplayString", "abc")
	requireReqError(t, err, ReqNotSupported)

	_, err = conn.Call("/app/agent", ProvisionAgentInterface, "Cancel")
	assert.NoError(t, err)

	body, err := conn.Call("/app/agent", bus.PropertiesInterface, "Get", ProvisionAgentInterface, "Capabilities")
	require.NoError(t, err)
	assert.Equal(t, DefaultAgentCapabilities, body[0].(dbus.Variant).Value())
}

func TestAgentDelegate(t *testing.T) {
	s, conn, _ := newTestSession(t)
	agent := &mockAgent{}
	register(t, s, agentApp(agent))

	static := []byte("0123456789abcdef")
	agent.On("DisplayNumeric", "out-numeric", uint32(1234)).Return(nil).Once()
	agent.On("DisplayString", "A1B2").Return(errors.New("no display")).Once()
	agent.On("PromptNumeric", "in-numeric").Return(uint32(42), nil).Once()
	agent.On("PromptStatic", "static-oob").Return(static, nil).Once()
	agent.On("PromptStatic", "short").Return([]byte{0x01}, nil).Once()
	agent.On("Cancel").Return().Once()

	_, err := conn.Call("/app/agent", ProvisionAgentInterface, "DisplayNumeric", "out-numeric", uint32(1234))
	require.NoError(t, err)

	_, err = conn.Call("/app/agent", ProvisionAgentInterface, "DisplayString", "A1B2")
	requireReqError(t, err, ReqFailed)

	body, err := conn.Call("/app/agent", ProvisionAgentInterface, "PromptNumeric", "in-numeric")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{uint32(42)}, body)

	body, err = conn.Call("/app/agent", ProvisionAgentInterface, "PromptStatic", "static-oob")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{static}, body)

	_, err = conn.Call("/app/agent", ProvisionAgentInterface, "PromptStatic", "short")
	requireReqError(t, err, ReqInvalidValueLength)

	_, err = conn.Call("/app/agent", ProvisionAgentInterface, "Cancel")
	require.NoError(t, err)

	agent.AssertExpectations(t)
}

func TestAgentCapabilities(t *testing.T) {
	s, conn, _ := newTestSession(t)
	register(t, s, agentApp(&capableAgent{}))

	body, err := conn.Call("/app/agent", bus.PropertiesInterface, "Get", ProvisionAgentInterface, "Capabilities")
	require.NoError(t, err)
	assert.Equal(t, []string{"in-numeric"}, body[0].(dbus.Variant).Value())
}
