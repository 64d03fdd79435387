package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type requestDataCtxKey struct{}

type RequestData struct {
	TokenString  string
	RefreshToken string
	UserID       uuid.UUID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataCtxKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataCtxKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
