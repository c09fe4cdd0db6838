package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTimeout = 60 * time.Second

	TasksPageSize        = 10
	FilesPageSize        = 10
	LogsPageSize         = 20
	TransactionsPageSize = 10
	GGUFLookupLimit      = 200
	BaseModelsLimit      = 100
)

var ErrMissingId = errors.New("response did not include an id")

// RemoteError is a non-2xx response from the fine-tuning API. Reason is the
// first of detail, reason or message found in the body, falling back to a
// per-call default.
type RemoteError struct {
	StatusCode int
	Reason     string
}

func (e *RemoteError) Error() string {
	return e.Reason
}

// Client is a thin wrapper over the remote fine-tuning REST API.
type Client struct {
	client *resty.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}

	return &Client{client: client}
}

func pageParams(limit, offset int) map[string]string {
	return map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	}
}

func remoteError(res *resty.Response, fallback string) error {
	reason := fallback

	var body map[string]any
	if err := json.Unmarshal(res.Body(), &body); err == nil {
		for _, key := range []string{"detail", "reason", "message"} {
			if s, ok := body[key].(string); ok && s != "" {
				reason = s
				break
			}
		}
	}

	return &RemoteError{StatusCode: res.StatusCode(), Reason: reason}
}

func (c *Client) do(ctx context.Context, method, path string, req *resty.Request, out any, fallback string) error {
	res, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		slog.Error("request to fine-tuning api failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}

	if !res.IsSuccess() {
		slog.Error("fine-tuning api returned error", "method", method, "path", path, "status_code", res.StatusCode(), "body", res.String())
		return remoteError(res, fallback)
	}

	if out == nil || len(res.Body()) == 0 {
		return nil
	}

	if err := json.Unmarshal(res.Body(), out); err != nil {
		return fmt.Errorf("error parsing response from %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) UploadFile(ctx context.Context, role, name string, body io.Reader) (File, error) {
	req := c.client.R().
		SetFormData(map[string]string{"file_type": role}).
		SetFileReader("file", name, body)

	var file File
	if err := c.do(ctx, http.MethodPost, "/files", req, &file, "Unable to upload file."); err != nil {
		return File{}, err
	}
	if file.ID() == 0 {
		return File{}, fmt.Errorf("upload failed: %w", ErrMissingId)
	}
	return file, nil
}

func (c *Client) ListFiles(ctx context.Context, limit, offset int) ([]File, error) {
	var res itemsResponse[File]
	req := c.client.R().SetQueryParams(pageParams(limit, offset))
	if err := c.do(ctx, http.MethodGet, "/files", req, &res, "Unable to load files."); err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c *Client) DeleteFile(ctx context.Context, fileId int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/files/%d", fileId), c.client.R(), nil, "Unable to delete file.")
}

var filenamePattern = regexp.MustCompile(`(?i)filename\*=UTF-8''([^;]+)|filename="?([^";]+)"?`)

func attachmentName(disposition string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	match := filenamePattern.FindStringSubmatch(disposition)
	if match == nil {
		return ""
	}
	if match[1] != "" {
		return strings.Trim(match[1], `'"`)
	}
	return strings.Trim(match[2], `'"`)
}

// ZipName turns a downloaded artifact name into the archive name the
// download is saved under.
func ZipName(name string, fileId int64) string {
	if name == "" {
		if fileId != 0 {
			name = fmt.Sprintf("file-%d", fileId)
		} else {
			name = "download"
		}
	}
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		return name
	}
	if strings.HasSuffix(strings.ToLower(name), ".gguf") {
		name = name[:len(name)-len(".gguf")]
	}
	return strings.TrimSuffix(name, ".") + ".zip"
}

// DownloadGGUF streams a gguf artifact into w and returns the file name
// suggested by the server, if any.
func (c *Client) DownloadGGUF(ctx context.Context, fileId int64, w io.Writer) (string, error) {
	path := fmt.Sprintf("/files/%d/download-gguf", fileId)
	res, err := c.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(path)
	if err != nil {
		return "", fmt.Errorf("GET %s failed: %w", path, err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		return "", &RemoteError{StatusCode: res.StatusCode(), Reason: "Download failed"}
	}

	if _, err := io.Copy(w, body); err != nil {
		return "", fmt.Errorf("error downloading file %d: %w", fileId, err)
	}

	return attachmentName(res.Header().Get("Content-Disposition")), nil
}

func (c *Client) CreateDatasetConfig(ctx context.Context, config DatasetConfigRequest) (int64, error) {
	var res datasetConfigResponse
	req := c.client.R().SetBody(config)
	if err := c.do(ctx, http.MethodPost, "/dataset-configs", req, &res, "Unable to create dataset config."); err != nil {
		return 0, err
	}
	if res.id() == 0 {
		return 0, fmt.Errorf("dataset config created but no id returned: %w", ErrMissingId)
	}
	return res.id(), nil
}

func (c *Client) CreateTask(ctx context.Context, task CreateTaskRequest) (RemoteTask, error) {
	var res RemoteTask
	req := c.client.R().SetBody(task)
	if err := c.do(ctx, http.MethodPost, "/tasks", req, &res, "Unable to create task."); err != nil {
		return RemoteTask{}, err
	}
	return res, nil
}

func (c *Client) ListTasks(ctx context.Context, limit, offset int) ([]TaskEntry, error) {
	var res itemsResponse[TaskEntry]
	req := c.client.R().SetQueryParams(pageParams(limit, offset))
	if err := c.do(ctx, http.MethodGet, "/tasks", req, &res, "Unable to load tasks."); err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c *Client) StartTask(ctx context.Context, taskId int64) error {
	req := c.client.R().SetBody(map[string]any{})
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/start", taskId), req, nil, "Action failed.")
}

func (c *Client) StopTask(ctx context.Context, taskId int64) error {
	req := c.client.R().SetBody(map[string]any{})
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/stop", taskId), req, nil, "Action failed.")
}

func (c *Client) DeleteTask(ctx context.Context, taskId int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d", taskId), c.client.R(), nil, "Action failed.")
}

func (c *Client) TaskLogs(ctx context.Context, taskId int64, limit, offset int) ([]LogEntry, error) {
	var res itemsResponse[LogEntry]
	req := c.client.R().SetQueryParams(pageParams(limit, offset))
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d/logs", taskId), req, &res, "Unable to load logs."); err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c *Client) Balance(ctx context.Context) (float64, error) {
	var res balanceResponse
	if err := c.do(ctx, http.MethodGet, "/balance", c.client.R(), &res, "Unable to load balance"); err != nil {
		return 0, err
	}
	if res.BalanceDollars == nil {
		return 0, errors.New("balance response has no balance_dollars")
	}
	return *res.BalanceDollars, nil
}

func (c *Client) ListTransactions(ctx context.Context, limit, offset int) ([]Transaction, error) {
	var res itemsResponse[Transaction]
	req := c.client.R().SetQueryParams(pageParams(limit, offset))
	if err := c.do(ctx, http.MethodGet, "/balance/transactions", req, &res, "Unable to load transactions."); err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c *Client) ListBaseModels(ctx context.Context) ([]BaseModel, error) {
	var res itemsResponse[BaseModel]
	req := c.client.R().SetQueryParams(pageParams(BaseModelsLimit, 0))
	if err := c.do(ctx, http.MethodGet, "/base-models", req, &res, "Unable to load base models."); err != nil {
		return nil, err
	}
	return res.Items, nil
}
