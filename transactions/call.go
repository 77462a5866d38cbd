package transactions

import (
	"kwil-client/auth"
)

// CallMessageBody is the body of a read-only call.
type CallMessageBody struct {
	Payload []byte `json:"payload"`
	// Challenge is issued by nodes running in private mode and must be signed.
	Challenge []byte `json:"challenge,omitempty"`
}

// CallMessage is a read-only action call. Calls are not transactions:
// they carry no fee or nonce and never change state.
type CallMessage struct {
	Body      *CallMessageBody `json:"body"`
	AuthType  string           `json:"auth_type"`
	Sender    []byte           `json:"sender"`
	Signature *auth.Signature  `json:"signature,omitempty"`
}

// CreateCallMessage encodes the call. A nil signer makes an anonymous call.
func CreateCallMessage(payload *ActionCall, signer auth.Signer) (*CallMessage, error) {
	data, err := payload.MarshalBinary()
	if err != nil {
		return nil, err
	}

	msg := &CallMessage{Body: &CallMessageBody{Payload: data}}
	if signer == nil {
		return msg, nil
	}

	authType, err := auth.ResolveSignatureType(signer)
	if err != nil {
		return nil, err
	}

	msg.AuthType = authType
	msg.Sender = signer.Identity()
	return msg, nil
}

// SignChallenge signs the payload and a node-issued challenge.
func (m *CallMessage) SignChallenge(signer auth.Signer, challenge []byte) error {
	authType, err := auth.ResolveSignatureType(signer)
	if err != nil {
		return err
	}

	m.Body.Challenge = challenge
	sig, err := signer.Sign(m.challengeMessage())
	if err != nil {
		return err
	}

	m.AuthType = authType
	m.Sender = signer.Identity()
	m.Signature = &auth.Signature{Signature: sig, Type: authType}
	return nil
}

func (m *CallMessage) challengeMessage() []byte {
	msg := make([]byte, 0, len(m.Body.Payload)+len(m.Body.Challenge))
	msg = append(msg, m.Body.Payload...)
	return append(msg, m.Body.Challenge...)
}
