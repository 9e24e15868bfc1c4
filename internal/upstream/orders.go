package upstream

import (
	"context"
	"fmt"
)

// Order and Ticket are passed to the browser as the upstream shapes them.

type OrderTicket struct {
	TicketID     int64   `json:"ticketId"`
	Date         string  `json:"date"`
	ActionName   string  `json:"actionName"`
	VenueName    string  `json:"venueName"`
	Sector       string  `json:"sector"`
	Row          string  `json:"row"`
	Number       string  `json:"number"`
	CategoryName string  `json:"categoryName"`
	Price        float64 `json:"price"`
	Event        int64   `json:"event"`
}

type Order struct {
	OrderID       int64         `json:"orderId"`
	Currency      string        `json:"currency"`
	Date          string        `json:"date"`
	Discount      float64       `json:"discount"`
	ServiceCharge float64       `json:"serviceCharge"`
	Sum           float64       `json:"sum"`
	Quantity      int           `json:"quantity"`
	TicketList    []OrderTicket `json:"ticketList"`
	StatusExtStr  string        `json:"statusExtStr"`
	StatusExtInt  int           `json:"statusExtInt"`
	UserMessage   string        `json:"userMessage"`
	Created       int64         `json:"created"`
	FormURL       string        `json:"formUrl"`
}

type Ticket struct {
	TicketID       int64   `json:"ticketId"`
	SeatID         int64   `json:"seatId"`
	ActionEventID  int64   `json:"actionEventId"`
	ActionID       int64   `json:"actionId"`
	VenueID        int64   `json:"venueId"`
	Date           string  `json:"date"`
	VenueName      string  `json:"venueName"`
	VenueAddress   string  `json:"venueAddress"`
	Sector         string  `json:"sector"`
	Row            string  `json:"row"`
	Number         string  `json:"number"`
	CategoryName   string  `json:"categoryName"`
	TariffPlanID   int64   `json:"tariffPlanId"`
	TariffPlanName string  `json:"tariffPlanName"`
	Price          float64 `json:"price"`
	TotalPrice     float64 `json:"totalPrice"`
	ServiceCharge  float64 `json:"serviceCharge"`
	BarCodeImg     string  `json:"barCodeImg"`
	BarCodeNumber  string  `json:"barCodeNumber"`
	BarCodeType    string  `json:"barCodeType"`
	ActionName     string  `json:"actionName"`
	SmallPosterURL string  `json:"smallPosterUrl"`
	Age            string  `json:"age"`
	StatusInt      int     `json:"statusInt"`
	StatusStr      string  `json:"statusStr"`
}

type OrderTickets struct {
	OrderID       int64    `json:"orderId"`
	Created       int64    `json:"created"`
	Currency      string   `json:"currency"`
	Date          string   `json:"date"`
	Discount      float64  `json:"discount"`
	Quantity      int      `json:"quantity"`
	ServiceCharge float64  `json:"serviceCharge"`
	StatusExtInt  int      `json:"statusExtInt"`
	StatusExtStr  string   `json:"statusExtStr"`
	Sum           float64  `json:"sum"`
	TotalSum      float64  `json:"totalSum"`
	Cashback      float64  `json:"cashback"`
	TicketList    []Ticket `json:"ticketList"`
	User          struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"user"`
}

type RefundRequest struct {
	OrderID string
	Name    string
	Email   string
	Phone   string
	Reason  string
}

func (c *Client) GetOrders(ctx context.Context) ([]Order, error) {
	const op = "upstream.Client.GetOrders"

	var out struct {
		OrderList []Order `json:"orderList"`
	}
	if err := c.post(ctx, "get_orders_ext", nil, &out); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out.OrderList, nil
}

func (c *Client) GetTicketsByOrder(ctx context.Context, orderID int64) (OrderTickets, error) {
	const op = "upstream.Client.GetTicketsByOrder"

	var out OrderTickets
	if err := c.post(ctx, "get_tickets_by_order", map[string]any{"oid": orderID}, &out); err != nil {
		return OrderTickets{}, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (c *Client) Refund(ctx context.Context, r RefundRequest) error {
	const op = "upstream.Client.Refund"

	args := map[string]any{"oid": r.OrderID}
	for k, v := range map[string]string{"name": r.Name, "email": r.Email, "phone": r.Phone, "reason": r.Reason} {
		if v != "" {
			args[k] = v
		}
	}

	if err := c.post(ctx, "refund_order", args, nil); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (c *Client) DeleteOrder(ctx context.Context, orderID int64) error {
	const op = "upstream.Client.DeleteOrder"

	if err := c.post(ctx, "delete_order", map[string]any{"oid": orderID}, nil); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
