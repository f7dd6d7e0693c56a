package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldWalletID      = "wallet_id"
	FieldToWalletID    = "to_wallet_id"
	FieldTransactionID = "transaction_id"
	FieldType          = "type"
	FieldAmount        = "amount"
	FieldMonth         = "month"
	FieldPage          = "page"
	FieldLimit         = "limit"
	FieldCount         = "count"
	FieldSequence      = "sequence"
	FieldDBPath        = "db_path"
	FieldDuration      = "duration_ms"
)

// Components
const (
	ComponentApp         = "app"
	ComponentCLI         = "cli"
	ComponentStorage     = "storage"
	ComponentTransaction = "transaction_store"
	ComponentWallet      = "wallet_store"
	ComponentBalance     = "balance_store"
	ComponentBackup      = "backup"
	ComponentCache       = "cache"
	ComponentPrefs       = "prefs"
)

// Operations
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpSummary  = "summary"
	OpTrend    = "trend"
	OpExport   = "export"
	OpRestore  = "restore"
	OpSeed     = "seed"
	OpMigrate  = "migrate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// Error categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeStale         = "stale_result"
	ErrorTypeBackupFormat  = "backup_format_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error message; nil is ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(t string) LogFields {
	f[FieldErrorType] = t
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds transaction identity and money fields.
func (f LogFields) WithTransaction(id int64, txType string, amount string, walletID int64) LogFields {
	f[FieldTransactionID] = id
	f[FieldType] = txType
	f[FieldAmount] = amount
	f[FieldWalletID] = walletID
	return f
}

func (f LogFields) WithWallet(id int64) LogFields {
	f[FieldWalletID] = id
	return f
}

func (f LogFields) WithMonth(month string) LogFields {
	f[FieldMonth] = month
	return f
}

func (f LogFields) WithPage(page, limit int) LogFields {
	f[FieldPage] = page
	f[FieldLimit] = limit
	return f
}

func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

// ToSlice converts LogFields to slog's alternating key/value form.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
