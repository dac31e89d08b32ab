package domain

// Label keys recognized under the baktainer.* namespace. See the
// LabelSchema package for the full validation table built on top of these.
const (
	LabelBackup         = "baktainer.backup"
	LabelName           = "baktainer.name"
	LabelDBEngine       = "baktainer.db.engine"
	LabelDBName         = "baktainer.db.name"
	LabelDBUser         = "baktainer.db.user"
	LabelDBPassword     = "baktainer.db.password"
	LabelDBAll          = "baktainer.db.all"
	LabelCompress       = "baktainer.backup.compress"
	LabelEncrypt        = "baktainer.backup.encrypt"
	LabelRetentionDays  = "baktainer.backup.retention.days"
	LabelRetentionCount = "baktainer.backup.retention.count"
	LabelPriority       = "baktainer.backup.priority"
)

// LabelNamespace is the prefix every recognized and unrecognized
// baktainer label key shares.
const LabelNamespace = "baktainer."
