package checkout

import (
	"github.com/go-faster/jx"
)

// Payload is the purchase request sent to the commerce API.
type Payload struct {
	Address       string
	PaymentMethod string
	UserID        int64
	AccountID     int64
	Lines         []PayloadLine
}

// PayloadLine is one product/quantity pair of a Payload.
type PayloadLine struct {
	ProductID int64
	Quantity  int
}

// EncodePayload renders p in the wire format of the purchase endpoint:
//
//	{
//	  "direccion": "...",
//	  "metodoPago": "...",
//	  "usuarioId": 1,
//	  "cuentaId": 1,
//	  "productos": [{"id": 1, "cantidad": 2}]
//	}
//
// Field names are fixed by the remote API.
func EncodePayload(p Payload) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("direccion", func(e *jx.Encoder) { e.Str(p.Address) })
		e.Field("metodoPago", func(e *jx.Encoder) { e.Str(p.PaymentMethod) })
		e.Field("usuarioId", func(e *jx.Encoder) { e.Int64(p.UserID) })
		e.Field("cuentaId", func(e *jx.Encoder) { e.Int64(p.AccountID) })
		e.Field("productos", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range p.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Int64(l.ProductID) })
						e.Field("cantidad", func(e *jx.Encoder) { e.Int(l.Quantity) })
					})
				}
			})
		})
	})
	return e.Bytes()
}

// purchaseReply is the interpreted body of a 2xx purchase response.
type purchaseReply struct {
	OK      bool
	Message string
}

// decodeReply accepts the literal true or an object with "success": true as
// a confirmed purchase. The message is taken from "message", then "error".
func decodeReply(body []byte) (purchaseReply, error) {
	d := jx.DecodeBytes(body)
	switch d.Next() {
	case jx.Bool:
		ok, err := d.Bool()
		return purchaseReply{OK: ok}, err
	case jx.Object:
		var (
			reply  purchaseReply
			errMsg string
		)
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "success":
				if d.Next() != jx.Bool {
					return d.Skip()
				}
				v, err := d.Bool()
				reply.OK = v
				return err
			case "message":
				return readString(d, &reply.Message)
			case "error":
				return readString(d, &errMsg)
			default:
				return d.Skip()
			}
		})
		if reply.Message == "" {
			reply.Message = errMsg
		}
		return reply, err
	default:
		return purchaseReply{}, d.Skip()
	}
}

func readString(d *jx.Decoder, dst *string) error {
	if d.Next() != jx.String {
		return d.Skip()
	}
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
