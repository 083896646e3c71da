package protocol

// IdentifyResponse is one chunk of the firmware dictionary
type IdentifyResponse struct {
	Offset uint32
	Data   []byte
}

// Encode writes the response arguments
func (r IdentifyResponse) Encode(output OutputBuffer) {
	EncodeVLQUint(output, r.Offset)
	EncodeVLQBytes(output, r.Data)
}

// DecodeIdentifyResponse reads an identify_response payload including its
// message ID. Data aliases payload.
func DecodeIdentifyResponse(payload []byte) (IdentifyResponse, error) {
	id, err := DecodeVLQUint(&payload)
	if err != nil {
		return IdentifyResponse{}, err
	}
	if uint16(id) != MsgIdentifyResponse {
		return IdentifyResponse{}, ErrUnexpectedMessage
	}
	offset, err := DecodeVLQUint(&payload)
	if err != nil {
		return IdentifyResponse{}, err
	}
	data, err := DecodeVLQBytes(&payload)
	if err != nil {
		return IdentifyResponse{}, err
	}
	return IdentifyResponse{Offset: offset, Data: data}, nil
}
