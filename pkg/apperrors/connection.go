package apperrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// ConnectionKind classifies why a connection to a target engine failed.
type ConnectionKind string

const (
	KindAuth            ConnectionKind = "auth"
	KindAuthPlugin      ConnectionKind = "auth_plugin"
	KindNetwork         ConnectionKind = "network"
	KindUnknownDatabase ConnectionKind = "unknown_database"
	KindTLS             ConnectionKind = "tls"
	KindUnknown         ConnectionKind = "unknown"
)

// ConnectionError is a user-presentable connection failure.
type ConnectionError struct {
	Kind            ConnectionKind
	ErrorType       string // wire value: auth_error, connection_error, ...
	FriendlyMessage string
	Suggestion      string
	Cause           error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.FriendlyMessage, e.Cause)
	}
	return e.FriendlyMessage
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Cause} }

type connectionRule struct {
	kind       ConnectionKind
	errorType  string
	message    string
	suggestion string
}

var connectionRules = map[ConnectionKind]connectionRule{
	KindAuth: {
		kind:       KindAuth,
		errorType:  "auth_error",
		message:    "数据库认证失败：用户名或密码错误",
		suggestion: "请检查用户名和密码是否正确，并确认该用户有权从当前主机访问数据库",
	},
	KindAuthPlugin: {
		kind:       KindAuthPlugin,
		errorType:  "auth_plugin_error",
		message:    "数据库认证插件需要安全连接",
		suggestion: "请为该用户改用 mysql_native_password 认证插件，或启用 SSL 连接",
	},
	KindNetwork: {
		kind:       KindNetwork,
		errorType:  "connection_error",
		message:    "无法连接到数据库服务器",
		suggestion: "请检查主机地址和端口是否正确，数据库服务是否已启动，以及防火墙设置",
	},
	KindUnknownDatabase: {
		kind:       KindUnknownDatabase,
		errorType:  "database_error",
		message:    "指定的数据库不存在",
		suggestion: "请检查数据库名称是否正确，或先在服务器上创建该数据库",
	},
	KindTLS: {
		kind:       KindTLS,
		errorType:  "ssl_error",
		message:    "SSL 连接错误",
		suggestion: "请检查服务器的 SSL 配置，或在连接选项中调整 SSL 模式",
	},
	KindUnknown: {
		kind:       KindUnknown,
		errorType:  "unknown_error",
		message:    "连接数据库失败",
		suggestion: "请检查连接配置后重试",
	},
}

// NewConnectionError builds a ConnectionError of the given kind.
func NewConnectionError(kind ConnectionKind, cause error) *ConnectionError {
	rule, ok := connectionRules[kind]
	if !ok {
		rule = connectionRules[KindUnknown]
	}
	return &ConnectionError{
		Kind:            rule.kind,
		ErrorType:       rule.errorType,
		FriendlyMessage: rule.message,
		Suggestion:      rule.suggestion,
		Cause:           cause,
	}
}

// ClassifyConnectionError maps a raw driver error onto a ConnectionError.
// Returns nil for a nil error and the error itself if it is already classified.
func ClassifyConnectionError(err error) *ConnectionError {
	if err == nil {
		return nil
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}

	return NewConnectionError(connectionKind(err), err)
}

func connectionKind(err error) ConnectionKind {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1045, 1044:
			return KindAuth
		case 1049:
			return KindUnknownDatabase
		case 1251:
			return KindAuthPlugin
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28P01", "28000":
			return KindAuth
		case "3D000":
			return KindUnknownDatabase
		}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "caching_sha2_password") && strings.Contains(lower, "secure connection"):
		return KindAuthPlugin
	case strings.Contains(msg, "Access denied for user"),
		strings.Contains(lower, "password authentication failed"),
		strings.Contains(lower, "login failed for user"),
		strings.Contains(msg, "ORA-01017"):
		return KindAuth
	case strings.Contains(msg, "Unknown database"),
		strings.Contains(lower, "database") && strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "cannot open database"),
		strings.Contains(msg, "ORA-12514"):
		return KindUnknownDatabase
	case strings.Contains(msg, "SSL"), strings.Contains(lower, "tls"), strings.Contains(lower, "x509"):
		return KindTLS
	case strings.Contains(msg, "Can't connect to MySQL server"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "i/o timeout"),
		strings.Contains(lower, "deadline exceeded"),
		strings.Contains(lower, "unable to open tcp connection"),
		strings.Contains(msg, "ORA-12541"),
		strings.Contains(msg, "ORA-12170"):
		return KindNetwork
	}

	return KindUnknown
}
