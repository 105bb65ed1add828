package sdk

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/everFinance/b3cverify/schema"
	"github.com/tidwall/gjson"
	"gopkg.in/h2non/gentleman.v2"
	"gopkg.in/h2non/gentleman.v2/plugins/timeout"
)

const InitDataHeader = "X-Telegram-Init-Data"

type Client struct {
	SCli *gentleman.Client
}

func New(apiUrl string) *Client {
	return NewWithTimeout(apiUrl, "", schema.DefaultRequestTimeout)
}

func NewWithTimeout(apiUrl, initData string, reqTimeout time.Duration) *Client {
	cli := gentleman.New().URL(apiUrl)
	cli.Use(timeout.Request(reqTimeout))
	if initData != "" {
		cli.SetHeader(InitDataHeader, initData)
	}
	return &Client{SCli: cli}
}

// Verify asks the backend whether the deposit behind paymentId has landed.
// Errors wrapping schema.ErrTransport mean the call itself failed; a schema.RespErr
// means the backend answered with success:false.
func (c *Client) Verify(flow, paymentId, boc string) (*schema.RespVerify, error) {
	path, err := verifyPath(flow, paymentId)
	if err != nil {
		return nil, err
	}
	req := c.SCli.Post()
	req.AddPath(path)
	if boc != "" {
		req.JSON(schema.ReqVerify{Boc: boc})
	}
	res := &schema.RespVerify{}
	if err = c.send(req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetBalance() (*schema.RespBalance, error) {
	req := c.SCli.Get()
	req.AddPath("/b3c/balance")
	res := &schema.RespBalance{}
	if err := c.send(req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetTransactions(offset, limit int) (*schema.RespTransactions, error) {
	req := c.SCli.Get()
	req.AddPath("/b3c/transactions")
	req.AddQuery("offset", strconv.Itoa(offset))
	req.AddQuery("limit", strconv.Itoa(limit))
	res := &schema.RespTransactions{}
	if err := c.send(req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) send(req *gentleman.Request, v interface{}) error {
	resp, err := req.Send()
	if err != nil {
		return fmt.Errorf("%w: %v", schema.ErrTransport, err)
	}
	defer resp.Close()
	return decodeEnvelope(resp.StatusCode, resp.Ok, resp.Bytes(), v)
}

// decodeEnvelope treats a success:true body as a business answer whatever the status code.
func decodeEnvelope(code int, ok bool, body []byte, v interface{}) error {
	success := gjson.GetBytes(body, "success")
	if !ok && !success.Bool() {
		return fmt.Errorf("%w: http code: %d, body: %s", schema.ErrTransport, code, string(body))
	}
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: invalid json body: %s", schema.ErrTransport, string(body))
	}
	if success.Exists() && !success.Bool() {
		errMsg := gjson.GetBytes(body, "error").String()
		if errMsg == "" {
			errMsg = "unknown_error"
		}
		return schema.RespErr{Err: errMsg}
	}
	return json.Unmarshal(body, v)
}

func verifyPath(flow, paymentId string) (string, error) {
	if paymentId == "" {
		return "", schema.ErrNullPaymentId
	}
	id := url.PathEscape(paymentId)
	switch flow {
	case schema.FlowDeposit:
		return fmt.Sprintf("/payment/%s/verify", id), nil
	case schema.FlowPurchase:
		return fmt.Sprintf("/b3c/buy/%s/verify", id), nil
	}
	return "", schema.ErrUnknownFlow
}
