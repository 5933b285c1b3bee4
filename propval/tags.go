package propval

// Well-known property tags used by folder operations.
const (
	TagDisplayName           = Tag(0x3001001F)
	TagComment               = Tag(0x3004001F)
	TagCreationTime          = Tag(0x30070040)
	TagLastModificationTime  = Tag(0x30080040)
	TagFolderType            = Tag(0x36010003)
	TagContentCount          = Tag(0x36020003)
	TagContentUnreadCount    = Tag(0x36030003)
	TagSubfolders            = Tag(0x360A000B)
	TagContainerClass        = Tag(0x3613001F)
	TagChangeKey             = Tag(0x65E20102)
	TagPredecessorChangeList = Tag(0x65E30102)
	TagFolderID              = Tag(0x67480014)
	TagParentFolderID        = Tag(0x67490014)
	TagChangeNumber          = Tag(0x67A40014)
	TagHierarchyChangeNumber = Tag(0x663E0003)
	TagDeletedCountTotal     = Tag(0x670B0003)
	TagAttributeHidden       = Tag(0x10F4000B)
	TagFolderChildCount      = Tag(0x66380003)
	TagLocalCommitTimeMax    = Tag(0x670A0040)
	TagMessageSizeExtended   = Tag(0x0E080014)
	TagAssocContentCount     = Tag(0x36170003)
	TagRights                = Tag(0x66390003)
	TagAccess                = Tag(0x0FF40003)
	TagEntryID               = Tag(0x0FFF0102)
	TagParentEntryID         = Tag(0x0E090102)
	TagSourceKey             = Tag(0x65E00102)
	TagParentSourceKey       = Tag(0x65E10102)
	TagRecordKey             = Tag(0x0FF90102)
	TagInstanceKey           = Tag(0x0FF60102)
	TagDisplayNameString8    = Tag(0x3001001E)
	TagContainerClassString8 = Tag(0x3613001E)
)

var tagNames = map[Tag]string{
	TagDisplayName:           "PR_DISPLAY_NAME",
	TagComment:               "PR_COMMENT",
	TagCreationTime:          "PR_CREATION_TIME",
	TagLastModificationTime:  "PR_LAST_MODIFICATION_TIME",
	TagFolderType:            "PR_FOLDER_TYPE",
	TagContentCount:          "PR_CONTENT_COUNT",
	TagContentUnreadCount:    "PR_CONTENT_UNREAD",
	TagSubfolders:            "PR_SUBFOLDERS",
	TagContainerClass:        "PR_CONTAINER_CLASS",
	TagChangeKey:             "PR_CHANGE_KEY",
	TagPredecessorChangeList: "PR_PREDECESSOR_CHANGE_LIST",
	TagFolderID:              "PR_FOLDER_ID",
	TagParentFolderID:        "PR_PARENT_FOLDER_ID",
	TagChangeNumber:          "PR_CHANGE_NUMBER",
	TagHierarchyChangeNumber: "PR_HIERARCHY_CHANGE_NUM",
	TagDeletedCountTotal:     "PR_DELETED_COUNT_TOTAL",
	TagAttributeHidden:       "PR_ATTR_HIDDEN",
	TagFolderChildCount:      "PR_FOLDER_CHILD_COUNT",
	TagLocalCommitTimeMax:    "PR_LOCAL_COMMIT_TIME_MAX",
	TagMessageSizeExtended:   "PR_MESSAGE_SIZE_EXTENDED",
	TagAssocContentCount:     "PR_ASSOC_CONTENT_COUNT",
	TagRights:                "PR_RIGHTS",
	TagAccess:                "PR_ACCESS",
	TagEntryID:               "PR_ENTRYID",
	TagParentEntryID:         "PR_PARENT_ENTRYID",
	TagSourceKey:             "PR_SOURCE_KEY",
	TagParentSourceKey:       "PR_PARENT_SOURCE_KEY",
	TagRecordKey:             "PR_RECORD_KEY",
	TagInstanceKey:           "PR_INSTANCE_KEY",
	TagDisplayNameString8:    "PR_DISPLAY_NAME_A",
	TagContainerClassString8: "PR_CONTAINER_CLASS_A",
}

// LookupTag returns the tag registered under a well-known name.
func LookupTag(name string) (Tag, bool) {
	for tag, n := range tagNames {
		if n == name {
			return tag, true
		}
	}
	return 0, false
}
