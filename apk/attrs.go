package apk

// android框架属性，资源id -> 属性名
var androidAttrs = map[uint32]string{
  0x01010000: "theme",
  0x01010001: "label",
  0x01010002: "icon",
  0x01010003: "name",
  0x01010006: "permission",
  0x01010007: "readPermission",
  0x01010008: "writePermission",
  0x01010009: "protectionLevel",
  0x0101000b: "sharedUserId",
  0x0101000c: "hasCode",
  0x0101000d: "persistent",
  0x0101000e: "enabled",
  0x0101000f: "debuggable",
  0x01010010: "exported",
  0x01010011: "process",
  0x01010012: "taskAffinity",
  0x01010018: "authorities",
  0x0101001c: "priority",
  0x0101001d: "launchMode",
  0x0101001e: "screenOrientation",
  0x0101001f: "configChanges",
  0x01010020: "description",
  0x01010021: "targetPackage",
  0x01010024: "value",
  0x01010025: "resource",
  0x01010026: "mimeType",
  0x01010027: "scheme",
  0x01010028: "host",
  0x01010029: "port",
  0x0101002a: "path",
  0x0101002b: "pathPrefix",
  0x0101002c: "pathPattern",
  0x010100d0: "id",
  0x010100f4: "layout_width",
  0x010100f5: "layout_height",
  0x0101020c: "minSdkVersion",
  0x0101021b: "versionCode",
  0x0101021c: "versionName",
  0x01010270: "targetSdkVersion",
  0x01010271: "maxSdkVersion",
}

// AttrName returns the name of a framework attribute by resource id.
func AttrName(id uint32) (string, bool) {
  s, ok := androidAttrs[id]
  return s, ok
}
