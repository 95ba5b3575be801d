package models

type Permission string

const (
	PermArticleView       Permission = "article:view"
	PermArticleViewDrafts Permission = "article:view:drafts"
	PermArticleCreate     Permission = "article:create"
	PermArticleEditOwn    Permission = "article:edit:own"
	PermArticleEditAll    Permission = "article:edit:all"
	PermArticleDeleteOwn  Permission = "article:delete:own"
	PermArticleDeleteAll  Permission = "article:delete:all"
	PermArticlePublishOwn Permission = "article:publish:own"
	PermArticlePublishAll Permission = "article:publish:all"
	PermArticleArchive    Permission = "article:archive"
	PermArticleRestoreOwn Permission = "article:restore:own"
	PermArticleRestoreAll Permission = "article:restore:all"
	PermVersionView       Permission = "version:view"
	PermLockForceRelease  Permission = "lock:force_release"
	PermCommentCreate     Permission = "comment:create"
	PermCommentEditOwn    Permission = "comment:edit:own"
	PermCommentDeleteOwn  Permission = "comment:delete:own"
	PermCategoryManage    Permission = "category:manage"
	PermUserManage        Permission = "user:manage"
)

var (
	readerPermissions = []Permission{
		PermArticleView,
		PermVersionView,
	}
	actorPermissions = append(clonePermissions(readerPermissions),
		PermCommentCreate,
		PermCommentEditOwn,
		PermCommentDeleteOwn,
	)
	authorPermissions = append(clonePermissions(actorPermissions),
		PermArticleCreate,
		PermArticleEditOwn,
		PermArticleDeleteOwn,
		PermArticlePublishOwn,
		PermArticleRestoreOwn,
	)
	editorPermissions = append(clonePermissions(authorPermissions),
		PermArticleViewDrafts,
		PermArticleEditAll,
		PermArticleDeleteAll,
		PermArticlePublishAll,
		PermArticleRestoreAll,
		PermArticleArchive,
		PermLockForceRelease,
		PermCategoryManage,
		PermUserManage,
	)

	rolePermissions = map[UserRole]map[Permission]struct{}{
		RoleReader: permissionSet(readerPermissions),
		RoleActor:  permissionSet(actorPermissions),
		RoleAuthor: permissionSet(authorPermissions),
		RoleEditor: permissionSet(editorPermissions),
	}
)

// HasPermission is a pure lookup against the role table. Ownership-scoped
// permissions (*:own) must additionally be matched against the resource owner
// by the caller.
func HasPermission(p Principal, perm Permission) bool {
	return RoleHasPermission(p.Role, perm)
}

func RoleHasPermission(role UserRole, perm Permission) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// CanActOn combines an own/all permission pair with the ownership check.
func CanActOn(p Principal, ownerID string, own, all Permission) bool {
	if HasPermission(p, all) {
		return true
	}
	return ownerID != "" && ownerID == p.ID && HasPermission(p, own)
}

// PermissionsFor lists the permissions granted to a role.
func PermissionsFor(role UserRole) []Permission {
	switch role {
	case RoleReader:
		return clonePermissions(readerPermissions)
	case RoleActor:
		return clonePermissions(actorPermissions)
	case RoleAuthor:
		return clonePermissions(authorPermissions)
	case RoleEditor:
		return clonePermissions(editorPermissions)
	}
	return nil
}

func permissionSet(perms []Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func clonePermissions(perms []Permission) []Permission {
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
