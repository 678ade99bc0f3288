package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/message"
)

type messageApi struct {
	*server
}

func registerMessageAPI(g *echo.Group, s *server) {
	api := messageApi{server: s}

	g.GET("", api.inbox)
	g.POST("", api.send)
	g.GET("/sent", api.sent)
	g.GET("/unread-count", api.unreadCount)
	g.GET("/:id", api.retrieve)
	g.PUT("/:id/read", api.markRead)
	g.DELETE("/:id", api.destroy)
}

func (api *messageApi) send(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data message.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	msg, err := api.MessageSvc.Send(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// inbox lists the received messages; `unread=true` keeps the unread ones only.
func (api *messageApi) inbox(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	unread := queryBool(ctx, "unread")
	msgs, err := api.MessageSvc.Inbox(ctx.Request().Context(), claims.Subject, unread != nil && *unread)
	if err != nil {
		return errors.Wrap(err, "querying inbox")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) sent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	msgs, err := api.MessageSvc.Sent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying sent messages")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) unreadCount(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	n, err := api.MessageSvc.UnreadCount(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, UnreadCountResponse{Unread: n})
}

func (api *messageApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	msg, err := api.MessageSvc.Get(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding message")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *messageApi) markRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	msg, err := api.MessageSvc.MarkRead(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking message read")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *messageApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.MessageSvc.Delete(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return ctx.NoContent(http.StatusNoContent)
}
