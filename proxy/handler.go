package proxy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flashbots/authproxy/jrpc"
	"github.com/flashbots/authproxy/metrics"
	"github.com/flashbots/authproxy/utils"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	otelapi "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

func (p *Proxy) receive(ctx *fasthttp.RequestCtx) {
	tsReqReceived := ctx.Time()

	l := p.logger.With(
		zap.Uint64("connection_id", ctx.ConnID()),
		zap.Uint64("request_id", ctx.ConnRequestNum()),
		zap.String("remote_addr", ctx.RemoteAddr().String()),
	)

	claims, err := p.authenticate(ctx, time.Now())
	if err != nil {
		reason := authFailureReason(err)

		metrics.AuthFailureCount.Add(context.TODO(), 1, otelapi.WithAttributes(
			attribute.KeyValue{Key: "proxy", Value: attribute.StringValue(p.cfg.Name)},
			attribute.KeyValue{Key: "reason", Value: attribute.StringValue(reason)},
		))
		l.Warn("Rejected unauthenticated request",
			zap.Error(err),
			zap.String("reason", reason),
		)

		ctx.Response.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.Response.SetBody(unauthorizedBody)
		return
	}

	tokenAge := time.Since(time.Unix(claims.IssuedAt, 0))

	metrics.AuthSuccessCount.Add(context.TODO(), 1, otelapi.WithAttributes(
		attribute.KeyValue{Key: "proxy", Value: attribute.StringValue(p.cfg.Name)},
	))
	metrics.TokenAge.Record(context.TODO(), tokenAge.Milliseconds(), otelapi.WithAttributes(
		attribute.KeyValue{Key: "proxy", Value: attribute.StringValue(p.cfg.Name)},
	))

	l = l.With(
		zap.String("jwt_id", claims.ID),
		zap.String("jwt_client_version", claims.ClientVersion),
		zap.Duration("jwt_token_age", tokenAge),
	)

	jrpcMethod := p.triage(ctx, l)

	p.forward(ctx, l, tsReqReceived, jrpcMethod)
}

// triage sniffs the json-rpc method for log/metric labels and warns when a
// block-building deadline is already almost spent by the time the FCU with
// payload attributes arrives.
func (p *Proxy) triage(ctx *fasthttp.RequestCtx, l *zap.Logger) string {
	call, err := jrpc.Unmarshal(ctx.Request.Body())
	if err != nil {
		l.Warn("Failed to parse authrpc call body",
			zap.Error(err),
		)
		return "unknown"
	}

	if strings.HasPrefix(call.GetMethod(), "engine_forkchoiceUpdated") {
		if state, attrs := jrpc.ParseForkchoiceUpdated(call); attrs != nil {
			if blockTimestamp, err := attrs.GetTimestamp(); err == nil {
				headsup := time.Until(blockTimestamp)
				if headsup < 200*time.Millisecond {
					loggedFields := []zap.Field{
						zap.Duration("headsup", headsup),
					}
					if state != nil {
						loggedFields = append(loggedFields,
							zap.String("head", state.HeadBlockHash.Hex()),
						)
					}
					l.Warn("Received FCU with payload with less than 200ms left to build the block",
						loggedFields...,
					)
				}
			} else {
				l.Warn("Failed to parse block timestamp from FCU payload attributes",
					zap.Error(err),
				)
			}
			return call.GetMethod() + "_withPayload"
		}
	}

	return call.GetMethod()
}

func (p *Proxy) forward(
	ctx *fasthttp.RequestCtx, l *zap.Logger, tsReqReceived time.Time, jrpcMethod string,
) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(res)

	ctx.Request.CopyTo(req)
	req.SetTimeout(p.cfg.Proxy.BackendTimeout)
	req.SetURI(p.backendURI)
	req.Header.Add("x-forwarded-for", ctx.RemoteIP().String())
	req.Header.Add("x-forwarded-host", utils.Str(ctx.Host()))
	req.Header.Add("x-forwarded-proto", utils.Str(ctx.Request.URI().Scheme()))

	if p.cfg.Issuer != nil {
		// the backend holds its own secret => swap the inbound bearer token
		// for a freshly minted one
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+p.cfg.Issuer.Token(time.Now()))
	}

	tsReqProxyStart := time.Now()
	err := p.backend.Do(req, res)
	tsReqProxyEnd := time.Now()

	loggedFields := make([]zap.Field, 0, 8)
	loggedFields = append(loggedFields,
		zap.Int("request_size", len(req.Body())),
		zap.Int("response_size", len(res.Body())),
	)

	if err != nil {
		switch utils.Str(req.Header.ContentType()) {
		case "application/json":
			res.SetStatusCode(fasthttp.StatusAccepted)
			res.SetBody([]byte(fmt.Sprintf(`{"jsonrpc":"2.0","error":{"code":-32042,"message":%s}}`, strconv.Quote(err.Error()))))
		default:
			res.SetBody([]byte(err.Error()))
			res.SetStatusCode(fasthttp.StatusBadGateway)
		}

		loggedFields = append(loggedFields,
			zap.NamedError("error_backend", err),
		)
	}

	if p.cfg.Proxy.LogRequests && len(req.Body()) <= p.cfg.Proxy.LogRequestsMaxSize {
		var jsonRequest interface{}
		if err := json.Unmarshal(req.Body(), &jsonRequest); err == nil {
			loggedFields = append(loggedFields,
				zap.Any("json_request", jsonRequest),
			)
		} else {
			loggedFields = append(loggedFields,
				zap.NamedError("error_unmarshal", err),
				zap.String("http_request", utils.Str(req.Body())),
			)
		}
	}

	loggedFields = append(loggedFields,
		zap.Int("http_status", res.StatusCode()),
		zap.String("jrpc_method", jrpcMethod),
		zap.Duration("latency_backend", tsReqProxyEnd.Sub(tsReqProxyStart)),
		zap.Duration("latency_total", time.Since(tsReqReceived)),
	)

	metricAttributes := otelapi.WithAttributes(
		attribute.KeyValue{Key: "proxy", Value: attribute.StringValue(p.cfg.Name)},
		attribute.KeyValue{Key: "jrpc_method", Value: attribute.StringValue(jrpcMethod)},
	)

	if err != nil {
		metrics.ProxyFailureCount.Add(context.TODO(), 1, metricAttributes)
		l.Error("Failed to proxy the request", loggedFields...)
	} else {
		metrics.ProxySuccessCount.Add(context.TODO(), 1, metricAttributes)
		l.Info("Proxied the request", loggedFields...)
	}

	res.CopyTo(&ctx.Response)

	{ // check if this is a draining connection
		addr := ctx.RemoteIP().String()

		p.mxConnections.Lock()
		defer p.mxConnections.Unlock()

		if _, isDraining := p.drainingConnections[addr]; isDraining {
			ctx.SetConnectionClose()
			l.Info("Marked draining client connection to be closed",
				zap.Int("remaining", len(p.drainingConnections)),
			)
		}
	}

	_ = l.Sync()
}
